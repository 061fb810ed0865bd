package rabbitmq

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

const ContentTypeJSON = "application/json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode serializes a message body as UTF-8 JSON.
func Encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrSerialization, err)
	}
	return body, nil
}

func Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSerialization, err)
	}
	return nil
}
