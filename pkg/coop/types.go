package coop

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Timestamp accepts the ISO-8601 variants the coop API emits, with or
// without a zone offset. Zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ParseTimestamp parses raw using the layouts accepted by Timestamp.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unsupported format %q", raw)
}

// ByteSize is a file size that the coop API reports either as a number of
// bytes or as a formatted string such as "1 B" or "2.5 MB".
type ByteSize int64

var sizeUnits = map[string]float64{
	"":      1,
	"B":     1,
	"BYTES": 1,
	"KB":    1 << 10,
	"MB":    1 << 20,
	"GB":    1 << 30,
	"TB":    1 << 40,
}

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*b = 0
		return nil
	}
	if data[0] != '"' {
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("byte size: %w", err)
		}
		*b = ByteSize(f)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("byte size: %w", err)
	}
	parsed, err := ParseByteSize(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseByteSize reads "123", "123 B" or "1.5 MB" style values.
func ParseByteSize(raw string) (ByteSize, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return 0, nil
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("byte size: invalid value %q", raw)
	}
	unit := ""
	if len(fields) > 1 {
		unit = strings.ToUpper(fields[1])
	}
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("byte size: unknown unit %q", fields[1])
	}
	return ByteSize(math.Round(value * mult)), nil
}

// Runtime describes how jobs against a dataset are executed.
type Runtime struct {
	Cmd       []string `json:"cmd"`
	ImageName *string  `json:"imageName"`
	MountDir  *string  `json:"mountDir"`
}

// Source marks a dataset imported from an external system.
type Source struct {
	Type     string `json:"type"`
	StoreURL string `json:"storeUrl,omitempty"`
}

// Dataset is a dataset as listed by the coop API.
type Dataset struct {
	UID          string    `json:"uid"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    Timestamp `json:"createdAt"`
	UpdatedAt    Timestamp `json:"updatedAt"`
	ClientID     string    `json:"clientId"`
	Name         string    `json:"name"`
	Private      string    `json:"private"`
	PrivateSize  ByteSize  `json:"privateSize"`
	Mock         string    `json:"mock"`
	MockSize     ByteSize  `json:"mockSize"`
	Summary      string    `json:"summary"`
	Readme       *string   `json:"readme"`
	Tags         []string  `json:"tags"`
	Runtime      Runtime   `json:"runtime"`
	AutoApproval []string  `json:"autoApproval"`
	Source       *Source   `json:"source,omitempty"`
}

// Job is an access-request job as listed by the coop API.
type Job struct {
	UID          string            `json:"uid"`
	CreatedBy    string            `json:"createdBy"`
	CreatedAt    Timestamp         `json:"createdAt"`
	UpdatedAt    Timestamp         `json:"updatedAt"`
	ClientID     string            `json:"clientId"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	UserCodeID   string            `json:"userCodeId"`
	Tags         []string          `json:"tags"`
	UserMetadata map[string]string `json:"userMetadata"`
	Status       string            `json:"status"`
	Error        string            `json:"error"`
	ErrorMessage *string           `json:"errorMessage"`
	OutputURL    string            `json:"outputUrl"`
	DatasetName  string            `json:"datasetName"`
	DatasetUID   string            `json:"datasetUid,omitempty"`
	Enclave      string            `json:"enclave"`
}

type datasetList struct {
	Datasets []Dataset `json:"datasets"`
}

type jobList struct {
	Jobs []Job `json:"jobs"`
}

type datasiteList struct {
	Datasites []string `json:"datasites"`
}

// ShopifyImport is the payload for importing a dataset from a Shopify store.
type ShopifyImport struct {
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	PAT         string  `json:"pat"`
	Description *string `json:"description,omitempty"`
}

// DatasetUpload carries a dataset file and its metadata for create/update.
// File may be nil on update, when only metadata changes.
type DatasetUpload struct {
	Name        string
	Description string
	Filename    string
	ContentType string
	File        io.Reader
}

// Download is an open private-file stream. Callers must Close it.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Close releases the underlying response body.
func (d *Download) Close() error {
	if d == nil || d.Body == nil {
		return nil
	}
	return d.Body.Close()
}

// Message is the generic `{message}` acknowledgement body.
type Message struct {
	Message string `json:"message"`
}
