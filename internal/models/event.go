package models

import "strings"

// StorageEvent is the S3 bucket notification document. S3 compatible stores
// publish the same shape to their AMQP targets.
type StorageEvent struct {
	EventName string               `json:"EventName,omitempty"`
	Key       string               `json:"Key,omitempty"`
	Records   []StorageEventRecord `json:"Records"`
}

type StorageEventRecord struct {
	EventVersion string `json:"eventVersion"`
	EventSource  string `json:"eventSource"`
	EventName    string `json:"eventName"`
	EventTime    string `json:"eventTime"`
	S3           struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
			ETag string `json:"eTag"`
		} `json:"object"`
	} `json:"s3"`
}

// IsObjectCreated matches both "ObjectCreated:Put" and "s3:ObjectCreated:Put".
func (r StorageEventRecord) IsObjectCreated() bool {
	return strings.HasPrefix(strings.TrimPrefix(r.EventName, "s3:"), "ObjectCreated:")
}
