package archive

import (
	"encoding/json"
	"fmt"
	"time"
)

// ObjectDescriptor identifies one stored object to pack. LocalFileName is the
// entry name inside the archive.
type ObjectDescriptor struct {
	Key           string    `json:"key"`
	Size          int64     `json:"size,string"`
	ReceiptHandle string    `json:"sqsReceiveHandle,omitempty"`
	LocalFileName string    `json:"localFileName"`
	Date          time.Time `json:"date"`
}

// Less orders descriptors by timestamp, then key.
func Less(a, b ObjectDescriptor) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Key < b.Key
}

// Context is one unit of batched work: objects sharing a parent prefix and a
// year. The consume-time fields are empty on the wire from the producer and
// are filled by Claim.
type Context struct {
	Prefix           string             `json:"prefix"`
	Year             string             `json:"year"`
	Objects          []ObjectDescriptor `json:"s3ArchiveObjects"`
	LocalDirectory   string             `json:"localDirectory"`
	LocalArchiveName string             `json:"localArchiveName"`
	DeleteToken      string             `json:"deleteRequestHandle"`
}

// Claim returns a copy of c owned by one consumer. The receiver is left as is.
func (c Context) Claim(dir, name, token string) Context {
	objects := make([]ObjectDescriptor, len(c.Objects))
	copy(objects, c.Objects)
	c.Objects = objects
	c.LocalDirectory = dir
	c.LocalArchiveName = name
	c.DeleteToken = token
	return c
}

func (c Context) TotalSize() int64 {
	var n int64
	for _, o := range c.Objects {
		n += o.Size
	}
	return n
}

func (c Context) Marshal() (string, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("context marshal: %w", err)
	}
	return string(body), nil
}

func Unmarshal(body string) (Context, error) {
	var c Context
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return Context{}, fmt.Errorf("context unmarshal: %w", err)
	}
	return c, nil
}
