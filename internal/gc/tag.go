package gc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Isolation tag grammar. Image tags are a single string on the ECR image:
//
//	assetgc.v1.<index>.<unixMillis>
//
// Object isolation lives in an S3 object tag whose key is ObjectTagKey and
// whose value is:
//
//	v1.<index>.<unixMillis>
//
// The index makes tags unique within a run (ECR rejects duplicate tags on
// different images), and the millisecond timestamp records when the asset
// was first observed unreferenced.
const (
	// ObjectTagKey is the S3 object tag key marking an isolated object.
	ObjectTagKey = "assetgc-isolated"

	imageTagPrefix = "assetgc."
	versionPrefix  = "v1."
)

// IsolationTag is the parsed form of an isolation marker.
type IsolationTag struct {
	Index      int64
	IsolatedAt time.Time
}

// FormatImageTag renders an ECR isolation tag.
func FormatImageTag(index int64, at time.Time) string {
	return imageTagPrefix + formatPayload(index, at)
}

// FormatObjectValue renders an S3 isolation tag value.
func FormatObjectValue(index int64, at time.Time) string {
	return formatPayload(index, at)
}

func formatPayload(index int64, at time.Time) string {
	return fmt.Sprintf("%s%d.%d", versionPrefix, index, at.UnixMilli())
}

// ParseImageTag parses an ECR image tag as an isolation marker. Tags that
// do not match the grammar are not isolation tags and return false.
func ParseImageTag(s string) (IsolationTag, bool) {
	payload, ok := strings.CutPrefix(s, imageTagPrefix)
	if !ok {
		return IsolationTag{}, false
	}
	return parsePayload(payload)
}

// ParseObjectValue parses the value of an ObjectTagKey tag.
func ParseObjectValue(s string) (IsolationTag, bool) {
	return parsePayload(s)
}

func parsePayload(s string) (IsolationTag, bool) {
	rest, ok := strings.CutPrefix(s, versionPrefix)
	if !ok {
		return IsolationTag{}, false
	}
	idxStr, msStr, ok := strings.Cut(rest, ".")
	if !ok {
		return IsolationTag{}, false
	}
	idx, err := strconv.ParseInt(idxStr, 10, 64)
	if err != nil || idx < 0 {
		return IsolationTag{}, false
	}
	ms, err := strconv.ParseInt(msStr, 10, 64)
	if err != nil || ms < 0 {
		return IsolationTag{}, false
	}
	return IsolationTag{Index: idx, IsolatedAt: time.UnixMilli(ms).UTC()}, true
}
