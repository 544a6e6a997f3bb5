package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantBucket string
		wantKey    string
	}{
		{
			"virtual hosted url",
			"https://medrag-patient-uploads.s3.us-east-2.amazonaws.com/alice/doc-1_report.pdf",
			"medrag-patient-uploads",
			"alice/doc-1_report.pdf",
		},
		{
			"nested key",
			"https://b.s3.eu-west-1.amazonaws.com/u/d/file name.pdf",
			"b",
			"u/d/file name.pdf",
		},
		{
			"no key",
			"https://bucket.s3.us-east-2.amazonaws.com",
			"bucket",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key := ParseURL(tt.url)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}
