package descriptor

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal serializes the descriptor set back to wire format. The encoder
// exists for round-trip tests and fixture construction; production input
// always comes from protoc.

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (s *FileDescriptorSet) Marshal() []byte {
	var b []byte
	for _, f := range s.File {
		b = appendMessage(b, fdsFile, f.marshal())
	}
	return b
}

func (f *FileDescriptorProto) marshal() []byte {
	var b []byte
	b = appendString(b, fileName, f.Name)
	b = appendString(b, filePackage, f.Package)
	for _, m := range f.MessageType {
		b = appendMessage(b, fileMessage, m.marshal())
	}
	for _, e := range f.EnumType {
		b = appendMessage(b, fileEnum, e.marshal())
	}
	for _, s := range f.Service {
		b = appendMessage(b, fileService, s.marshal())
	}
	return b
}

func (m *DescriptorProto) marshal() []byte {
	var b []byte
	b = appendString(b, msgName, m.Name)
	for _, f := range m.Field {
		b = appendMessage(b, msgField, f.marshal())
	}
	for _, n := range m.NestedType {
		b = appendMessage(b, msgNested, n.marshal())
	}
	return b
}

func (f *FieldDescriptorProto) marshal() []byte {
	var b []byte
	b = appendString(b, fieldName, f.Name)
	if f.Type != 0 {
		b = appendVarint(b, fieldType, uint64(f.Type))
	}
	b = appendString(b, fieldTypeName, f.TypeName)
	if f.Options != nil {
		b = appendMessage(b, fieldOptions, f.Options.marshal())
	}
	return b
}

func (o *FieldOptions) marshal() []byte {
	var b []byte
	if o.Rules != nil {
		b = appendMessage(b, fieldOptionsRules, o.Rules.marshal())
	}
	return b
}

func (r *FieldRules) marshal() []byte {
	var b []byte
	if r.Int32 != nil {
		b = appendMessage(b, rulesInt32, r.Int32.marshal())
	}
	if r.Uint32 != nil {
		b = appendMessage(b, rulesUint32, r.Uint32.marshal())
	}
	if r.Uint64 != nil {
		b = appendMessage(b, rulesUint64, r.Uint64.marshal())
	}
	if r.String != nil {
		b = appendMessage(b, rulesString, r.String.marshal())
	}
	if r.Enum != nil {
		b = appendMessage(b, rulesEnum, r.Enum.marshal())
	}
	if r.Message != nil {
		b = appendMessage(b, rulesMessage, r.Message.marshal())
	}
	return b
}

func (r *MessageRules) marshal() []byte {
	var b []byte
	b = appendBool(b, messageRulesRequired, r.Required)
	return b
}

func (r *StringRules) marshal() []byte {
	var b []byte
	if r.MinLen != nil {
		b = appendVarint(b, stringRulesMinLen, *r.MinLen)
	}
	if r.MaxLen != nil {
		b = appendVarint(b, stringRulesMaxLen, *r.MaxLen)
	}
	b = appendString(b, stringRulesPattern, r.Pattern)
	for _, v := range r.In {
		b = appendString(b, stringRulesIn, v)
	}
	b = appendBool(b, stringRulesUUID, r.UUID)
	return b
}

func (r *Int32Rules) marshal() []byte {
	// Negative int32 values go on the wire sign-extended to 64 bits,
	// the same way protoc encodes them.
	var b []byte
	if r.Lt != nil {
		b = appendVarint(b, numRulesLt, uint64(int64(*r.Lt)))
	}
	if r.Lte != nil {
		b = appendVarint(b, numRulesLte, uint64(int64(*r.Lte)))
	}
	if r.Gt != nil {
		b = appendVarint(b, numRulesGt, uint64(int64(*r.Gt)))
	}
	if r.Gte != nil {
		b = appendVarint(b, numRulesGte, uint64(int64(*r.Gte)))
	}
	return b
}

func (r *Uint32Rules) marshal() []byte {
	var b []byte
	if r.Lt != nil {
		b = appendVarint(b, numRulesLt, uint64(*r.Lt))
	}
	if r.Lte != nil {
		b = appendVarint(b, numRulesLte, uint64(*r.Lte))
	}
	if r.Gt != nil {
		b = appendVarint(b, numRulesGt, uint64(*r.Gt))
	}
	if r.Gte != nil {
		b = appendVarint(b, numRulesGte, uint64(*r.Gte))
	}
	return b
}

func (r *Uint64Rules) marshal() []byte {
	var b []byte
	if r.Lt != nil {
		b = appendVarint(b, numRulesLt, *r.Lt)
	}
	if r.Lte != nil {
		b = appendVarint(b, numRulesLte, *r.Lte)
	}
	if r.Gt != nil {
		b = appendVarint(b, numRulesGt, *r.Gt)
	}
	if r.Gte != nil {
		b = appendVarint(b, numRulesGte, *r.Gte)
	}
	return b
}

func (r *EnumRules) marshal() []byte {
	var b []byte
	for _, v := range r.NotIn {
		b = appendVarint(b, enumRulesNotIn, uint64(int64(v)))
	}
	return b
}

func (e *EnumDescriptorProto) marshal() []byte {
	var b []byte
	b = appendString(b, enumName, e.Name)
	for _, v := range e.Value {
		var vb []byte
		vb = appendString(vb, enumValueName, v.Name)
		if v.Number != 0 {
			vb = appendVarint(vb, enumValueNumber, uint64(int64(v.Number)))
		}
		b = appendMessage(b, enumValue, vb)
	}
	return b
}

func (s *ServiceDescriptorProto) marshal() []byte {
	var b []byte
	b = appendString(b, svcName, s.Name)
	for _, m := range s.Method {
		b = appendMessage(b, svcMethod, m.marshal())
	}
	return b
}

func (m *MethodDescriptorProto) marshal() []byte {
	var b []byte
	b = appendString(b, methodName, m.Name)
	b = appendString(b, methodInputType, m.InputType)
	b = appendString(b, methodOutputType, m.OutputType)
	if m.Options != nil {
		b = appendMessage(b, methodOptions, m.Options.marshal())
	}
	b = appendBool(b, methodClientStreaming, m.ClientStreaming)
	b = appendBool(b, methodServerStreaming, m.ServerStreaming)
	return b
}

func (o *MethodOptions) marshal() []byte {
	var b []byte
	if o.HTTP != nil {
		b = appendMessage(b, methodOptionsHTTP, o.HTTP.marshal())
	}
	return b
}

func (r *HTTPRule) marshal() []byte {
	var b []byte
	if r.Pattern != nil {
		var num protowire.Number
		switch r.Pattern.Verb {
		case VerbGet:
			num = httpRuleGet
		case VerbPut:
			num = httpRulePut
		case VerbPost:
			num = httpRulePost
		case VerbDelete:
			num = httpRuleDelete
		case VerbPatch:
			num = httpRulePatch
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, r.Pattern.Path)
	}
	b = appendString(b, httpRuleBody, r.Body)
	return b
}
