package object

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// bucketNameRE implements the base syntax from §6: 3-63 chars,
// [a-z0-9]([a-z0-9-]*[a-z0-9])?
var bucketNameRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

var reservedBucketPrefixes = []string{"xn--", "sthree-", "amzn-s3-demo-"}
var reservedBucketSuffixes = []string{"-s3alias", "--ol-s3", "--x-s3", "--table-s3"}

var ipv4LiteralRE = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

// windowsReservedNames are platform-reserved entry names that are invalid
// regardless of host OS, per §6's entry-name rules.
var windowsReservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// bucketValidate is a shared validator instance for struct-tag driven
// config validation, exposed through Validate; nothing in the module
// calls Validate, and engine.Config carries no validate tags. Bucket
// and path rules themselves are hand-written below because they encode
// S3-specific syntax no generic "oneof"/"regex" tag expresses cleanly.
var bucketValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate exposes the shared validator instance for struct-tag validation
// of configuration types across the module.
func Validate(s any) error {
	return bucketValidate.Struct(s)
}

// ValidateBucketName checks a bucket name against §6. allowDots controls
// the "optional dot-allowed mode" the spec mentions; when true, consecutive
// dots and IPv4-literal names are still rejected.
func ValidateBucketName(name string, allowDots bool) error {
	if len(name) < 3 || len(name) > 63 {
		return NewInvalidInput(name, "bucket name must be 3-63 characters")
	}

	candidate := name
	if allowDots {
		if strings.Contains(name, "..") {
			return NewInvalidInput(name, "bucket name must not contain consecutive dots")
		}
		if ipv4LiteralRE.MatchString(name) {
			return NewInvalidInput(name, "bucket name must not be formatted as an IPv4 address")
		}
		// Validate each dot-separated label against the base syntax.
		for _, label := range strings.Split(name, ".") {
			if !bucketNameRE.MatchString(label) {
				return NewInvalidInput(name, "bucket name label is invalid")
			}
		}
	} else if !bucketNameRE.MatchString(candidate) {
		return NewInvalidInput(name, "bucket name does not match required syntax")
	}

	lower := strings.ToLower(name)
	for _, p := range reservedBucketPrefixes {
		if strings.HasPrefix(lower, p) {
			return NewInvalidInput(name, "bucket name uses a reserved prefix")
		}
	}
	for _, s := range reservedBucketSuffixes {
		if strings.HasSuffix(lower, s) {
			return NewInvalidInput(name, "bucket name uses a reserved suffix")
		}
	}

	return nil
}

// ValidateEntryName checks a single path segment against the filesystem
// entry-name rules in §6.
func ValidateEntryName(name string) error {
	if len(name) == 0 || len(name) > HardMaxEntryNameBytes {
		return NewInvalidInput(name, "entry name must be 1-255 bytes")
	}
	if name == "." || name == ".." {
		return NewInvalidInput(name, "entry name must not be . or ..")
	}
	if strings.ContainsRune(name, '/') {
		return NewInvalidInput(name, "entry name must not contain /")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return NewInvalidInput(name, "entry name must not contain control characters")
		}
	}
	base := name
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if windowsReservedNames[strings.ToLower(base)] {
		return NewInvalidInput(name, "entry name matches a platform-reserved name")
	}
	return nil
}

// ValidateObjectPath checks an object path against §6: 1-1024 UTF-8 bytes,
// valid UTF-8, /-separated segments each of which is a valid entry name.
func ValidateObjectPath(path string, limits Limits) error {
	if len(path) == 0 || len(path) > limits.MaxObjectPathBytes {
		return NewInvalidInput(path, "object path must be 1-1024 bytes")
	}
	if !utf8.ValidString(path) {
		return NewInvalidInput(path, "object path must be valid UTF-8")
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return NewInvalidInput(path, "object path must not have a leading or trailing /")
	}
	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if seg == "" {
			return NewInvalidInput(path, "object path must not contain empty segments")
		}
		if err := ValidateEntryName(seg); err != nil {
			return NewInvalidInput(path, "object path segment invalid: "+err.Error())
		}
	}
	return nil
}

// PathSegments splits a validated object path into its segments, used by
// the catalog's path_seg column and by directory-prefix listing.
func PathSegments(path string) []string {
	return strings.Split(path, "/")
}

// ValidateTags checks the object_tags set against §3/§6.
func ValidateTags(tags Tags, limits Limits) error {
	if len(tags) > limits.MaxTagCount {
		return NewInvalidInput("", "at most 20 tags are allowed")
	}
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if len(t) == 0 || len(t) > limits.MaxTagBytes {
			return NewInvalidInput(t, "tag must be 1-128 UTF-8 bytes")
		}
		if !utf8.ValidString(t) {
			return NewInvalidInput(t, "tag must be valid UTF-8")
		}
		if _, dup := seen[t]; dup {
			return NewInvalidInput(t, "duplicate tag")
		}
		seen[t] = struct{}{}
	}
	return nil
}

// ValidateDescription bounds the description's serialized size.
func ValidateDescription(desc string, limits Limits) error {
	if len(desc) > limits.MaxDescriptionBytes {
		return NewInvalidInput("", "description exceeds configured size limit")
	}
	return nil
}

// ValidateUserMetadata bounds the user-metadata's serialized JSON size and
// confirms it is well-formed (callers pass the already-marshaled bytes,
// but UserMetadata is a json.RawMessage alias callers can populate
// directly, so malformed bytes are still possible here).
func ValidateUserMetadata(raw []byte, limits Limits) error {
	if len(raw) > limits.MaxUserMetaBytes {
		return NewInvalidInput("", "user metadata exceeds configured size limit")
	}
	if len(raw) > 0 && !json.Valid(raw) {
		return NewInvalidInput("", "user metadata is not well-formed JSON")
	}
	return nil
}

// ValidatePartSize checks a chosen part size against §3/§6.
func ValidatePartSize(partSize int64, limits Limits) error {
	if partSize < limits.MinPartSize || partSize > limits.MaxPartSize {
		return NewInvalidInput("", "part size out of range")
	}
	return nil
}

// ValidateSize checks overall object size against §3/§6, including the
// derived relationship between size, num_parts and part_size (invariant 4).
func ValidateSize(size int64, numParts int, partSize int64, limits Limits) error {
	if size < 0 || size > limits.MaxObjectSize {
		return NewInvalidInput("", "object size out of range")
	}
	if numParts > limits.MaxParts {
		return NewInvalidInput("", "object has too many parts")
	}
	if size == 0 {
		if numParts != 0 {
			return NewInvariantViolation("size is zero but num_parts is nonzero")
		}
		return nil
	}
	if numParts == 0 {
		return NewInvariantViolation("size is nonzero but num_parts is zero")
	}
	tail := size - int64(numParts-1)*partSize
	if tail <= 0 || tail > partSize {
		return NewInvariantViolation("size/num_parts/part_size relationship violated")
	}
	return nil
}
