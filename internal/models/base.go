package models

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// BaseModel contains the fields every stored document carries
type BaseModel struct {
	ID        string `mapstructure:"id" json:"id"`
	CreatedAt string `mapstructure:"created_at" json:"created_at"`
	UpdatedAt string `mapstructure:"updated_at" json:"updated_at"`
}

// NewID returns a fresh document identifier
func NewID() string {
	return uuid.New().String()
}

// Timestamp formats t the way documents store it (RFC 3339, UTC).
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Decode converts a raw document into a typed model. Input is weakly typed:
// documents written by older clients store numbers as strings, and
// Firestore hands back int64 and time.Time values.
func Decode(doc map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
		DecodeHook:       timeToString,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func timeToString(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return Timestamp(v), nil
	case *time.Time:
		if v == nil {
			return "", nil
		}
		return Timestamp(*v), nil
	}
	return data, nil
}
