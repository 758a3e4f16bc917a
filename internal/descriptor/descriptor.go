// Package descriptor holds a minimal protobuf descriptor model with
// google.api.http and validate.rules extension support.
//
// Standard descriptor decoders drop both extensions (fields 72295728 and
// 1071) because they arrive as unknown fields. The types here declare them
// explicitly, so they survive decoding with structured access.
package descriptor

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Proto field type constants (from google.protobuf.FieldDescriptorProto.Type).
const (
	TypeInt64   int32 = 3
	TypeUint64  int32 = 4
	TypeInt32   int32 = 5
	TypeBool    int32 = 8
	TypeString  int32 = 9
	TypeMessage int32 = 11
	TypeUint32  int32 = 13
	TypeEnum    int32 = 14
)

// FileDescriptorSet is the root of a compiled descriptor set.
type FileDescriptorSet struct {
	File []*FileDescriptorProto
}

// FileDescriptorProto describes a single .proto file.
type FileDescriptorProto struct {
	Name        string
	Package     string
	MessageType []*DescriptorProto
	EnumType    []*EnumDescriptorProto
	Service     []*ServiceDescriptorProto
}

// DescriptorProto describes a message type.
type DescriptorProto struct {
	Name       string
	Field      []*FieldDescriptorProto
	NestedType []*DescriptorProto
}

// FieldDescriptorProto describes a message field.
type FieldDescriptorProto struct {
	Name string
	// Type is the protobuf field type id: 5=int32, 9=string, 11=message,
	// 14=enum and so on.
	Type int32
	// TypeName is the fully-qualified type name for message and enum
	// fields (e.g. ".auth.v1.OAuthProvider").
	TypeName string
	Options  *FieldOptions
}

// FieldOptions carries the validate.rules extension (field 1071).
type FieldOptions struct {
	Rules *FieldRules
}

// FieldRules is the subset of validate.FieldRules the discovery pass maps
// to OpenAPI constraints.
type FieldRules struct {
	Message *MessageRules
	Int32   *Int32Rules
	Uint32  *Uint32Rules
	Uint64  *Uint64Rules
	String  *StringRules
	Enum    *EnumRules
}

// MessageRules carries the message-level required flag.
type MessageRules struct {
	Required bool
}

// StringRules carries string validation rules.
type StringRules struct {
	MinLen  *uint64
	MaxLen  *uint64
	Pattern string
	In      []string
	// UUID is the well_known oneof arm: true means the field must be a
	// valid UUID.
	UUID bool
}

// Int32Rules carries signed 32-bit numeric bounds.
type Int32Rules struct {
	Lt  *int32
	Lte *int32
	Gt  *int32
	Gte *int32
}

// Uint32Rules carries unsigned 32-bit numeric bounds.
type Uint32Rules struct {
	Lt  *uint32
	Lte *uint32
	Gt  *uint32
	Gte *uint32
}

// Uint64Rules carries unsigned 64-bit numeric bounds.
type Uint64Rules struct {
	Lt  *uint64
	Lte *uint64
	Gt  *uint64
	Gte *uint64
}

// EnumRules carries the excluded enum value numbers.
type EnumRules struct {
	NotIn []int32
}

// EnumDescriptorProto describes an enum type.
type EnumDescriptorProto struct {
	Name  string
	Value []*EnumValueDescriptorProto
}

// EnumValueDescriptorProto describes one enum value.
type EnumValueDescriptorProto struct {
	Name   string
	Number int32
}

// ServiceDescriptorProto describes a service.
type ServiceDescriptorProto struct {
	Name   string
	Method []*MethodDescriptorProto
}

// MethodDescriptorProto describes one RPC method.
type MethodDescriptorProto struct {
	Name            string
	InputType       string
	OutputType      string
	Options         *MethodOptions
	ClientStreaming bool
	ServerStreaming bool
}

// MethodOptions carries the google.api.http extension (field 72295728).
type MethodOptions struct {
	HTTP *HTTPRule
}

// Verb is one of the five HTTP verbs a binding can carry.
type Verb int

const (
	VerbGet Verb = iota + 1
	VerbPut
	VerbPost
	VerbDelete
	VerbPatch
)

// String returns the lowercase verb name used as a path-item key.
func (v Verb) String() string {
	switch v {
	case VerbGet:
		return "get"
	case VerbPut:
		return "put"
	case VerbPost:
		return "post"
	case VerbDelete:
		return "delete"
	case VerbPatch:
		return "patch"
	}
	return ""
}

// HTTPPattern is the verb arm of the google.api.HttpRule pattern oneof,
// together with its path template.
type HTTPPattern struct {
	Verb Verb
	Path string
}

// HTTPRule is the google.api.HttpRule REST mapping of an RPC. A method has
// at most one recognized pattern even if the source encodes several; the
// first one read wins.
type HTTPRule struct {
	Pattern *HTTPPattern
	Body    string
}

// HTTPPatternOf returns the (verb, path) pair from a method's
// google.api.http annotation, or nil if the method has no binding.
func HTTPPatternOf(method *MethodDescriptorProto) *HTTPPattern {
	if method.Options == nil || method.Options.HTTP == nil {
		return nil
	}
	return method.Options.HTTP.Pattern
}

// BodySelector returns the body selector of a method's HTTP rule, or the
// empty string when the method has no rule.
func BodySelector(method *MethodDescriptorProto) string {
	if method.Options == nil || method.Options.HTTP == nil {
		return ""
	}
	return method.Options.HTTP.Body
}

// wire field numbers used by the model
const (
	fdsFile = 1

	fileName    = 1
	filePackage = 2
	fileMessage = 4
	fileEnum    = 5
	fileService = 6

	msgName   = 1
	msgField  = 2
	msgNested = 3

	fieldName     = 1
	fieldType     = 5
	fieldTypeName = 6
	fieldOptions  = 8

	fieldOptionsRules = 1071

	rulesInt32   = 3
	rulesUint32  = 5
	rulesUint64  = 6
	rulesString  = 14
	rulesEnum    = 16
	rulesMessage = 17

	messageRulesRequired = 2

	stringRulesMinLen  = 2
	stringRulesMaxLen  = 3
	stringRulesPattern = 6
	stringRulesIn      = 10
	stringRulesUUID    = 22

	numRulesLt  = 2
	numRulesLte = 3
	numRulesGt  = 4
	numRulesGte = 5

	enumRulesNotIn = 4

	enumName  = 1
	enumValue = 2

	enumValueName   = 1
	enumValueNumber = 2

	svcName   = 1
	svcMethod = 2

	methodName            = 1
	methodInputType       = 2
	methodOutputType      = 3
	methodOptions         = 4
	methodClientStreaming = 5
	methodServerStreaming = 6

	methodOptionsHTTP = 72295728

	httpRuleGet    = 2
	httpRulePut    = 3
	httpRulePost   = 4
	httpRuleDelete = 5
	httpRulePatch  = 6
	httpRuleBody   = 7
)

// verbFieldNumber maps a pattern oneof field number to its verb.
func verbFieldNumber(num protowire.Number) (Verb, bool) {
	switch num {
	case httpRuleGet:
		return VerbGet, true
	case httpRulePut:
		return VerbPut, true
	case httpRulePost:
		return VerbPost, true
	case httpRuleDelete:
		return VerbDelete, true
	case httpRulePatch:
		return VerbPatch, true
	}
	return 0, false
}
