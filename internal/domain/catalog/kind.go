package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDataType is returned for a data_type outside the supported kinds.
var ErrUnknownDataType = errors.New("catalog: unknown data type")

// DataType is the entity kind carried by a feed.
type DataType string

const (
	DataTypeProducts     DataType = "products"
	DataTypeInventory    DataType = "inventory"
	DataTypeImageGallery DataType = "imagegallery"
	DataTypeVariants     DataType = "variants"
	DataTypeCustomOption DataType = "customoption"
)

// extensionPrefix is accepted in front of extension kinds ("products-inventory").
const extensionPrefix = "products-"

// AllDataTypes returns every supported kind.
func AllDataTypes() []DataType {
	return []DataType{
		DataTypeProducts,
		DataTypeInventory,
		DataTypeImageGallery,
		DataTypeVariants,
		DataTypeCustomOption,
	}
}

// ParseDataType resolves a data_type string.
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s != string(DataTypeProducts) {
		s = strings.TrimPrefix(s, extensionPrefix)
	}
	for _, dt := range AllDataTypes() {
		if string(dt) == s {
			return dt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDataType, s)
}

// IsValid reports whether the kind is supported.
func (d DataType) IsValid() bool {
	_, err := ParseDataType(string(d))
	return err == nil
}

// IsExtension reports whether the kind is forwarded as product extension data.
func (d DataType) IsExtension() bool {
	return d != DataTypeProducts
}

func (d DataType) String() string {
	return string(d)
}
