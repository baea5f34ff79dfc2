package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/piotr-liszka/open-dev-activity/internal/domain"
)

// MaxKeyLen bounds the dedup key for storage compatibility with the
// unique index on the sink.
const MaxKeyLen = 500

// Key derives the stable identity string of a record. It is a pure
// function of the record's semantic identity: kind, author, occurrence
// time rounded to whole seconds, repository, and a kind-specific
// discriminator. Re-ingesting the same logical event always yields a
// byte-identical key.
func Key(r domain.ActivityRecord) string {
	prefix := fmt.Sprintf("%s:%s:%s:%s:", r.Kind, r.Author, r.OccurredAt.UTC().Format("2006-01-02T15:04:05Z"), r.Repository)
	disc := discriminator(r)
	key := prefix + disc
	if len(key) <= MaxKeyLen {
		return key
	}
	// Replace the variable-length tail with a fixed-length content hash,
	// keeping the prefix for index locality.
	key = prefix + contentHash(disc)
	if len(key) <= MaxKeyLen {
		return key
	}
	// Pathological author/repository lengths: fall back to hashing the
	// whole identity. Still deterministic, still unique.
	return string(r.Kind) + ":" + contentHash(key)
}

// discriminator disambiguates records that share kind, author, second and
// repository. Two different status changes landing in the same second on
// the same subject must not collide, hence the content hash of the
// changed value.
func discriminator(r domain.ActivityRecord) string {
	switch r.Kind {
	case domain.ActivityCommit:
		if sha := r.Metadata["sha"]; sha != "" {
			return sha
		}
		return shortHash(r.Description)
	case domain.ActivityComment:
		return fmt.Sprintf("%d:%d:%s", r.Number, r.OccurredAt.UTC().Unix(), shortHash(r.Metadata["body"]))
	case domain.ActivityStatusChange:
		return fmt.Sprintf("%d:status:%s", r.Number, shortHash(r.Metadata["to"]))
	case domain.ActivityReview:
		return fmt.Sprintf("%d:review:%s", r.Number, shortHash(r.Metadata["state"]))
	case domain.ActivityLabeled, domain.ActivityUnlabeled:
		return fmt.Sprintf("%d:%s:%s", r.Number, r.Kind, shortHash(r.Metadata["label"]))
	case domain.ActivityAssigned, domain.ActivityUnassigned:
		return fmt.Sprintf("%d:%s:%s", r.Number, r.Kind, shortHash(r.Metadata["assignee"]))
	default:
		return fmt.Sprintf("%d:%s", r.Number, r.Kind)
	}
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
