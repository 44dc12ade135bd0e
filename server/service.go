package server

import (
	"fmt"
	"go/token"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type methodType struct {
	method    reflect.Method
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// service is a registered receiver and the methods of it that can be called remotely.
type service struct {
	name   string
	rcvr   reflect.Value
	typ    reflect.Type
	method map[string]*methodType
}

// newService inspects rcvr, which must be a pointer to a named struct, and collects
// its exported methods of the form
//
//	func (t *T) Method(args *Args, reply *Reply) error
func newService(rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("rpc: receiver must be a pointer, got %v", typ)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpc: receiver must point to a struct, got %s", typ.Elem().Kind())
	}
	name := typ.Elem().Name()
	if !token.IsExported(name) {
		return nil, fmt.Errorf("rpc: receiver type %q is not exported", name)
	}

	svc := &service{
		name:   name,
		rcvr:   reflect.ValueOf(rcvr),
		typ:    typ,
		method: make(map[string]*methodType),
	}
	svc.registerMethods()
	if len(svc.method) == 0 {
		return nil, fmt.Errorf("rpc: type %s has no methods of the form M(*Args, *Reply) error", name)
	}
	return svc, nil
}

func (s *service) registerMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		method := s.typ.Method(i)
		mt := method.Type
		if mt.NumIn() != 3 || mt.NumOut() != 1 || mt.Out(0) != errorType ||
			mt.In(1).Kind() != reflect.Pointer || mt.In(2).Kind() != reflect.Pointer {
			continue
		}
		s.method[method.Name] = &methodType{
			method:    method,
			ArgType:   mt.In(1).Elem(),
			ReplyType: mt.In(2).Elem(),
		}
	}
}

// call invokes the method and turns a panic inside it into an error.
func (s *service) call(mType *methodType, argv, replyv reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rpc: %s.%s panicked: %v", s.name, mType.method.Name, r)
		}
	}()
	results := mType.method.Func.Call([]reflect.Value{s.rcvr, argv, replyv})
	if errv := results[0]; !errv.IsNil() {
		return errv.Interface().(error)
	}
	return nil
}
