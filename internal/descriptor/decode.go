package descriptor

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeError reports malformed descriptor bytes.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("descriptor decode: %s", e.Reason)
}

func decodeErrf(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// fieldFn handles one field of a message. It returns the number of bytes it
// consumed from b, or 0 when the field is not recognized and the caller
// should skip it.
type fieldFn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walkFields drives the decode loop of one message: parse a tag, dispatch
// to the handler, skip anything it does not claim.
func walkFields(b []byte, f fieldFn) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return decodeErrf("invalid tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		consumed, err := f(num, typ, b)
		if err != nil {
			return err
		}
		if consumed == 0 {
			consumed = protowire.ConsumeFieldValue(num, typ, b)
			if consumed < 0 {
				return decodeErrf("field %d: %v", num, protowire.ParseError(consumed))
			}
		}
		b = b[consumed:]
	}
	return nil
}

func consumeString(b []byte, num protowire.Number, typ protowire.Type) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, decodeErrf("field %d: expected length-delimited, got wire type %d", num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", 0, decodeErrf("field %d: %v", num, protowire.ParseError(n))
	}
	return string(v), n, nil
}

func consumeMessage(b []byte, num protowire.Number, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, decodeErrf("field %d: expected length-delimited, got wire type %d", num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, decodeErrf("field %d: %v", num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeVarint(b []byte, num protowire.Number, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, decodeErrf("field %d: expected varint, got wire type %d", num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, decodeErrf("field %d: %v", num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBool(b []byte, num protowire.Number, typ protowire.Type) (bool, int, error) {
	v, n, err := consumeVarint(b, num, typ)
	return v != 0, n, err
}

func consumeInt32(b []byte, num protowire.Number, typ protowire.Type) (int32, int, error) {
	v, n, err := consumeVarint(b, num, typ)
	return int32(v), n, err
}

// consumeInt32List handles a repeated int32 field in either packed or
// expanded form.
func consumeInt32List(dst []int32, b []byte, num protowire.Number, typ protowire.Type) ([]int32, int, error) {
	if typ == protowire.VarintType {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return dst, 0, decodeErrf("field %d: %v", num, protowire.ParseError(n))
		}
		return append(dst, int32(v)), n, nil
	}
	packed, n, err := consumeMessage(b, num, typ)
	if err != nil {
		return dst, 0, err
	}
	for len(packed) > 0 {
		v, vn := protowire.ConsumeVarint(packed)
		if vn < 0 {
			return dst, 0, decodeErrf("field %d: packed element: %v", num, protowire.ParseError(vn))
		}
		dst = append(dst, int32(v))
		packed = packed[vn:]
	}
	return dst, n, nil
}

// Unmarshal decodes a serialized FileDescriptorSet.
func Unmarshal(b []byte) (*FileDescriptorSet, error) {
	fds := &FileDescriptorSet{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fdsFile {
			return 0, nil
		}
		raw, n, err := consumeMessage(b, num, typ)
		if err != nil {
			return 0, err
		}
		file, err := unmarshalFile(raw)
		if err != nil {
			return 0, err
		}
		fds.File = append(fds.File, file)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return fds, nil
}

func unmarshalFile(b []byte) (*FileDescriptorProto, error) {
	file := &FileDescriptorProto{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fileName:
			v, n, err := consumeString(b, num, typ)
			file.Name = v
			return n, err
		case filePackage:
			v, n, err := consumeString(b, num, typ)
			file.Package = v
			return n, err
		case fileMessage:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			msg, err := unmarshalMessage(raw)
			if err != nil {
				return 0, err
			}
			file.MessageType = append(file.MessageType, msg)
			return n, nil
		case fileEnum:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			enum, err := unmarshalEnum(raw)
			if err != nil {
				return 0, err
			}
			file.EnumType = append(file.EnumType, enum)
			return n, nil
		case fileService:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			svc, err := unmarshalService(raw)
			if err != nil {
				return 0, err
			}
			file.Service = append(file.Service, svc)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func unmarshalMessage(b []byte) (*DescriptorProto, error) {
	msg := &DescriptorProto{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case msgName:
			v, n, err := consumeString(b, num, typ)
			msg.Name = v
			return n, err
		case msgField:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			field, err := unmarshalField(raw)
			if err != nil {
				return 0, err
			}
			msg.Field = append(msg.Field, field)
			return n, nil
		case msgNested:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			nested, err := unmarshalMessage(raw)
			if err != nil {
				return 0, err
			}
			msg.NestedType = append(msg.NestedType, nested)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func unmarshalField(b []byte) (*FieldDescriptorProto, error) {
	field := &FieldDescriptorProto{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldName:
			v, n, err := consumeString(b, num, typ)
			field.Name = v
			return n, err
		case fieldType:
			v, n, err := consumeInt32(b, num, typ)
			field.Type = v
			return n, err
		case fieldTypeName:
			v, n, err := consumeString(b, num, typ)
			field.TypeName = v
			return n, err
		case fieldOptions:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			opts, err := unmarshalFieldOptions(raw)
			if err != nil {
				return 0, err
			}
			field.Options = opts
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return field, nil
}

func unmarshalFieldOptions(b []byte) (*FieldOptions, error) {
	opts := &FieldOptions{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldOptionsRules {
			return 0, nil
		}
		raw, n, err := consumeMessage(b, num, typ)
		if err != nil {
			return 0, err
		}
		rules, err := unmarshalFieldRules(raw)
		if err != nil {
			return 0, err
		}
		opts.Rules = rules
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return opts, nil
}

func unmarshalFieldRules(b []byte) (*FieldRules, error) {
	rules := &FieldRules{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case rulesMessage:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			mr := &MessageRules{}
			err = walkFields(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num != messageRulesRequired {
					return 0, nil
				}
				v, n, err := consumeBool(b, num, typ)
				mr.Required = v
				return n, err
			})
			if err != nil {
				return 0, err
			}
			rules.Message = mr
			return n, nil
		case rulesInt32:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			r, err := unmarshalInt32Rules(raw)
			if err != nil {
				return 0, err
			}
			rules.Int32 = r
			return n, nil
		case rulesUint32:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			r, err := unmarshalUint32Rules(raw)
			if err != nil {
				return 0, err
			}
			rules.Uint32 = r
			return n, nil
		case rulesUint64:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			r, err := unmarshalUint64Rules(raw)
			if err != nil {
				return 0, err
			}
			rules.Uint64 = r
			return n, nil
		case rulesString:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			r, err := unmarshalStringRules(raw)
			if err != nil {
				return 0, err
			}
			rules.String = r
			return n, nil
		case rulesEnum:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			er := &EnumRules{}
			err = walkFields(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num != enumRulesNotIn {
					return 0, nil
				}
				list, n, err := consumeInt32List(er.NotIn, b, num, typ)
				er.NotIn = list
				return n, err
			})
			if err != nil {
				return 0, err
			}
			rules.Enum = er
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func unmarshalStringRules(b []byte) (*StringRules, error) {
	r := &StringRules{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case stringRulesMinLen:
			v, n, err := consumeVarint(b, num, typ)
			r.MinLen = &v
			return n, err
		case stringRulesMaxLen:
			v, n, err := consumeVarint(b, num, typ)
			r.MaxLen = &v
			return n, err
		case stringRulesPattern:
			v, n, err := consumeString(b, num, typ)
			r.Pattern = v
			return n, err
		case stringRulesIn:
			v, n, err := consumeString(b, num, typ)
			if err != nil {
				return 0, err
			}
			r.In = append(r.In, v)
			return n, nil
		case stringRulesUUID:
			v, n, err := consumeBool(b, num, typ)
			r.UUID = v
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshalInt32Rules(b []byte) (*Int32Rules, error) {
	r := &Int32Rules{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case numRulesLt:
			v, n, err := consumeInt32(b, num, typ)
			r.Lt = &v
			return n, err
		case numRulesLte:
			v, n, err := consumeInt32(b, num, typ)
			r.Lte = &v
			return n, err
		case numRulesGt:
			v, n, err := consumeInt32(b, num, typ)
			r.Gt = &v
			return n, err
		case numRulesGte:
			v, n, err := consumeInt32(b, num, typ)
			r.Gte = &v
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshalUint32Rules(b []byte) (*Uint32Rules, error) {
	r := &Uint32Rules{}
	consume := func(b []byte, num protowire.Number, typ protowire.Type) (*uint32, int, error) {
		v, n, err := consumeVarint(b, num, typ)
		u := uint32(v)
		return &u, n, err
	}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case numRulesLt:
			v, n, err := consume(b, num, typ)
			r.Lt = v
			return n, err
		case numRulesLte:
			v, n, err := consume(b, num, typ)
			r.Lte = v
			return n, err
		case numRulesGt:
			v, n, err := consume(b, num, typ)
			r.Gt = v
			return n, err
		case numRulesGte:
			v, n, err := consume(b, num, typ)
			r.Gte = v
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshalUint64Rules(b []byte) (*Uint64Rules, error) {
	r := &Uint64Rules{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case numRulesLt:
			v, n, err := consumeVarint(b, num, typ)
			r.Lt = &v
			return n, err
		case numRulesLte:
			v, n, err := consumeVarint(b, num, typ)
			r.Lte = &v
			return n, err
		case numRulesGt:
			v, n, err := consumeVarint(b, num, typ)
			r.Gt = &v
			return n, err
		case numRulesGte:
			v, n, err := consumeVarint(b, num, typ)
			r.Gte = &v
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshalEnum(b []byte) (*EnumDescriptorProto, error) {
	enum := &EnumDescriptorProto{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case enumName:
			v, n, err := consumeString(b, num, typ)
			enum.Name = v
			return n, err
		case enumValue:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			val := &EnumValueDescriptorProto{}
			err = walkFields(raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case enumValueName:
					v, n, err := consumeString(b, num, typ)
					val.Name = v
					return n, err
				case enumValueNumber:
					v, n, err := consumeInt32(b, num, typ)
					val.Number = v
					return n, err
				}
				return 0, nil
			})
			if err != nil {
				return 0, err
			}
			enum.Value = append(enum.Value, val)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return enum, nil
}

func unmarshalService(b []byte) (*ServiceDescriptorProto, error) {
	svc := &ServiceDescriptorProto{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case svcName:
			v, n, err := consumeString(b, num, typ)
			svc.Name = v
			return n, err
		case svcMethod:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			method, err := unmarshalMethod(raw)
			if err != nil {
				return 0, err
			}
			svc.Method = append(svc.Method, method)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func unmarshalMethod(b []byte) (*MethodDescriptorProto, error) {
	method := &MethodDescriptorProto{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case methodName:
			v, n, err := consumeString(b, num, typ)
			method.Name = v
			return n, err
		case methodInputType:
			v, n, err := consumeString(b, num, typ)
			method.InputType = v
			return n, err
		case methodOutputType:
			v, n, err := consumeString(b, num, typ)
			method.OutputType = v
			return n, err
		case methodOptions:
			raw, n, err := consumeMessage(b, num, typ)
			if err != nil {
				return 0, err
			}
			opts, err := unmarshalMethodOptions(raw)
			if err != nil {
				return 0, err
			}
			method.Options = opts
			return n, nil
		case methodClientStreaming:
			v, n, err := consumeBool(b, num, typ)
			method.ClientStreaming = v
			return n, err
		case methodServerStreaming:
			v, n, err := consumeBool(b, num, typ)
			method.ServerStreaming = v
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return method, nil
}

func unmarshalMethodOptions(b []byte) (*MethodOptions, error) {
	opts := &MethodOptions{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != methodOptionsHTTP {
			return 0, nil
		}
		raw, n, err := consumeMessage(b, num, typ)
		if err != nil {
			return 0, err
		}
		rule, err := unmarshalHTTPRule(raw)
		if err != nil {
			return 0, err
		}
		opts.HTTP = rule
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return opts, nil
}

func unmarshalHTTPRule(b []byte) (*HTTPRule, error) {
	rule := &HTTPRule{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if verb, ok := verbFieldNumber(num); ok {
			v, n, err := consumeString(b, num, typ)
			if err != nil {
				return 0, err
			}
			// First pattern wins.
			if rule.Pattern == nil {
				rule.Pattern = &HTTPPattern{Verb: verb, Path: v}
			}
			return n, nil
		}
		if num == httpRuleBody {
			v, n, err := consumeString(b, num, typ)
			rule.Body = v
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}
