package catalogsync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"github.com/go-playground/validator/v10"
)

// DefaultTableName is the staging table used when the payload names none.
const DefaultTableName = "staged_records"

// DefaultCharset is the feed encoding used when the payload names none.
const DefaultCharset = "utf-8"

const googleSheetsExportURL = "https://docs.google.com/spreadsheets/d/%s/export?format=csv&id=%s&gid=%s"

var (
	ErrInvalidPayload      = errors.New("catalogsync: invalid invocation payload")
	ErrFeedLocationMissing = errors.New("catalogsync: feed location missing")
)

var validate = validator.New()

// ---------------------------------------------------------------------------
// FlexInt
// ---------------------------------------------------------------------------

// FlexInt is an integer that decodes from a JSON number or string and always
// encodes as a string.
type FlexInt int

// UnmarshalJSON accepts 3, "3", "4.0", "" and null. Fractional values and
// values outside the int range are rejected.
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
	}
	v, err := parseFlexInt(s)
	if err != nil {
		return err
	}
	*n = FlexInt(v)
	return nil
}

func parseFlexInt(s string) (int, error) {
	i, err := strconv.ParseInt(s, 10, 0)
	if err == nil {
		return int(i), nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidPayload, s)
	}
	f, err := strconv.ParseFloat(s, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidPayload, s)
	case err != nil, math.IsNaN(f), math.IsInf(f, 0):
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPayload, s)
	case f != math.Trunc(f):
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidPayload, s)
	case f >= -float64(math.MinInt) || f < float64(math.MinInt):
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidPayload, s)
	}
	return int(f), nil
}

// MarshalJSON encodes the value as a JSON string.
func (n FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(n)))
}

// Int returns the value as an int.
func (n FlexInt) Int() int {
	return int(n)
}

// ---------------------------------------------------------------------------
// Payload
// ---------------------------------------------------------------------------

// Payload is the invocation body shared by the stage and forward tasks. Fields
// the engine does not know are kept and re-emitted on every handoff.
type Payload struct {
	Source           string                   `json:"source" validate:"required"`
	TableName        string                   `json:"table_name,omitempty"`
	DataType         string                   `json:"data_type" validate:"required"`
	Offset           FlexInt                  `json:"offset,omitempty" validate:"gte=0"`
	Loop             FlexInt                  `json:"loop,omitempty" validate:"gte=0"`
	TimeInterval     FlexInt                  `json:"time_interval,omitempty" validate:"gte=0"`
	AttributeSet     string                   `json:"attribute_set,omitempty"`
	TxMap            catalog.TranslationTable `json:"txmap,omitempty"`
	AttributePairs   []catalog.AttributePair  `json:"attribute_pairs,omitempty"`
	DataFeedURL      string                   `json:"data_feed_url,omitempty" validate:"omitempty,url"`
	GoogleSheetID    string                   `json:"google_sheet_id,omitempty"`
	GID              string                   `json:"gid,omitempty"`
	Decode           string                   `json:"decode,omitempty"`
	S3Bucket         string                   `json:"s3_bucket,omitempty"`
	S3Key            string                   `json:"s3_key,omitempty"`
	IdempotencyToken string                   `json:"idempotency_token,omitempty"`
	RetryFailed      bool                     `json:"retry_failed,omitempty"`

	extra map[string]json.RawMessage
}

// payloadFields is an alias without methods so the codec can reuse the tags.
type payloadFields Payload

// ParsePayload decodes and validates an invocation body.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// UnmarshalJSON decodes known fields and keeps the rest.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var fields payloadFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownFields() {
		delete(all, k)
	}
	*p = Payload(fields)
	if len(all) > 0 {
		p.extra = all
	}
	return nil
}

// MarshalJSON encodes known fields over the preserved unknown ones.
func (p Payload) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(payloadFields(p))
	if err != nil {
		return nil, err
	}
	if len(p.extra) == 0 {
		return known, nil
	}
	out := make(map[string]json.RawMessage, len(p.extra)+8)
	for k, v := range p.extra {
		out[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// Extra returns a preserved unknown field.
func (p Payload) Extra(key string) (json.RawMessage, bool) {
	v, ok := p.extra[key]
	return v, ok
}

// Validate checks required fields and the data type.
func (p Payload) Validate() error {
	if err := validate.Struct(payloadFields(p)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, err := p.Kind(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Kind returns the parsed data type.
func (p Payload) Kind() (catalog.DataType, error) {
	return catalog.ParseDataType(p.DataType)
}

// Table returns the staging table name.
func (p Payload) Table() string {
	if t := strings.TrimSpace(p.TableName); t != "" {
		return t
	}
	return DefaultTableName
}

// AttributeSchema returns the declared attribute pairs, if any.
func (p Payload) AttributeSchema() catalog.AttributeSchema {
	return catalog.AttributeSchema(p.AttributePairs)
}

// Handoff returns the payload for the next stage invocation.
func (p Payload) Handoff(offset, loop int, token string) Payload {
	next := p.clone()
	next.Offset = FlexInt(offset)
	next.Loop = FlexInt(loop)
	next.IdempotencyToken = token
	return next
}

// ForwardTrigger returns the payload that starts the forward task.
func (p Payload) ForwardTrigger(token string) Payload {
	return p.Handoff(0, 0, token)
}

func (p Payload) clone() Payload {
	next := p
	if p.extra != nil {
		next.extra = make(map[string]json.RawMessage, len(p.extra))
		for k, v := range p.extra {
			next.extra[k] = v
		}
	}
	return next
}

func knownFields() []string {
	return []string{
		"source", "table_name", "data_type", "offset", "loop", "time_interval",
		"attribute_set", "txmap", "attribute_pairs", "data_feed_url", "google_sheet_id",
		"gid", "decode", "s3_bucket", "s3_key", "idempotency_token", "retry_failed",
	}
}

// ---------------------------------------------------------------------------
// FeedLocation
// ---------------------------------------------------------------------------

// FeedLocation says where the feed lives and how it is encoded. Exactly one of
// URL or (Bucket, Key) is set.
type FeedLocation struct {
	URL     string
	Bucket  string
	Key     string
	Charset string
}

// IsObject reports whether the feed is an object-store object.
func (l FeedLocation) IsObject() bool {
	return l.Bucket != "" && l.Key != ""
}

// String renders the location for logs.
func (l FeedLocation) String() string {
	if l.IsObject() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.URL
}

// FeedLocation resolves the feed from the payload. An object location wins
// over data_feed_url, which wins over a Google Sheets id.
func (p Payload) FeedLocation() (FeedLocation, error) {
	charset := strings.TrimSpace(p.Decode)
	if charset == "" {
		charset = DefaultCharset
	}
	loc := FeedLocation{Charset: charset}
	switch {
	case p.S3Bucket != "" && p.S3Key != "":
		loc.Bucket, loc.Key = p.S3Bucket, p.S3Key
	case p.DataFeedURL != "":
		loc.URL = p.DataFeedURL
	case p.GoogleSheetID != "":
		gid := p.GID
		if gid == "" {
			gid = "0"
		}
		id := url.PathEscape(p.GoogleSheetID)
		loc.URL = fmt.Sprintf(googleSheetsExportURL, id, url.QueryEscape(p.GoogleSheetID), url.QueryEscape(gid))
	default:
		return FeedLocation{}, ErrFeedLocationMissing
	}
	return loc, nil
}
