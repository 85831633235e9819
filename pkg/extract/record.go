package extract

import "strings"

// Field names a slot of a registration record. The string value is the JSON key.
type Field string

const (
	FieldOwnerName      Field = "ownerName"
	FieldRegistrationNo Field = "registrationNo"
	FieldMake           Field = "make"
	FieldModel          Field = "model"
	FieldYear           Field = "year"
	FieldVIN            Field = "vin"
	FieldAddress        Field = "address"
	FieldPhone          Field = "phone"
	FieldEmail          Field = "email"
)

// Fields is the fixed field set in record order.
var Fields = []Field{
	FieldOwnerName,
	FieldRegistrationNo,
	FieldMake,
	FieldModel,
	FieldYear,
	FieldVIN,
	FieldAddress,
	FieldPhone,
	FieldEmail,
}

// Record holds the fields read off a registration card. A field that could not
// be read is the empty string; every key is always present when encoded.
type Record struct {
	OwnerName      string `json:"ownerName" mapstructure:"owner_name"`
	RegistrationNo string `json:"registrationNo" mapstructure:"registration_no"`
	Make           string `json:"make" mapstructure:"make"`
	Model          string `json:"model" mapstructure:"model"`
	Year           string `json:"year" mapstructure:"year"`
	VIN            string `json:"vin" mapstructure:"vin"`
	Address        string `json:"address" mapstructure:"address"`
	Phone          string `json:"phone" mapstructure:"phone"`
	Email          string `json:"email" mapstructure:"email"`
}

func (r *Record) slot(f Field) *string {
	switch f {
	case FieldOwnerName:
		return &r.OwnerName
	case FieldRegistrationNo:
		return &r.RegistrationNo
	case FieldMake:
		return &r.Make
	case FieldModel:
		return &r.Model
	case FieldYear:
		return &r.Year
	case FieldVIN:
		return &r.VIN
	case FieldAddress:
		return &r.Address
	case FieldPhone:
		return &r.Phone
	case FieldEmail:
		return &r.Email
	}
	return nil
}

// Get returns the value of f, or "" for an unknown field.
func (r Record) Get(f Field) string {
	if p := r.slot(f); p != nil {
		return *p
	}
	return ""
}

// Set assigns v to f. Unknown fields are ignored.
func (r *Record) Set(f Field, v string) {
	if p := r.slot(f); p != nil {
		*p = v
	}
}

// Filled counts the fields holding a non-blank value.
func (r Record) Filled() int {
	n := 0
	for _, f := range Fields {
		if strings.TrimSpace(r.Get(f)) != "" {
			n++
		}
	}
	return n
}

// Empty reports whether no field holds a value.
func (r Record) Empty() bool { return r.Filled() == 0 }
