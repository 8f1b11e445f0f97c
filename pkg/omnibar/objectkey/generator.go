package objectkey

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Purposes an image can be stored for.
const (
	PurposePost  = "post"
	PurposeDraft = "draft"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for an image owned by ownerID
	GenerateKey(ownerID, imageID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	Purpose  string // PurposePost or PurposeDraft
	MimeType string // picks the file extension
	Variant  string // "resized", "1280w", ...; empty for the stored original
}

// FlatGenerator keeps every image directly under its owner
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(ownerID, imageID uuid.UUID, metadata *KeyMetadata) string {
	return fmt.Sprintf("I/%s/%s%s", ownerID, imageID, extension(metadata))
}

// GitLikeGenerator provides Git-style sharded storage split by purpose
// Original: posts/objects/ab/cd1234ef5678.png
// Variant:  posts/{variant}/objects/ab/cd1234ef5678.png
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) GenerateKey(ownerID, imageID uuid.UUID, metadata *KeyMetadata) string {
	return shardedKey(strings.ReplaceAll(imageID.String(), "-", ""), g.ShardLength, metadata)
}

// HashedGitLikeGenerator derives the key from owner and image ids, so the
// same pair always lands on the same key. Drafts use it to overwrite the
// previous save.
type HashedGitLikeGenerator struct {
	ShardLength int
}

func NewHashedGitLikeGenerator() *HashedGitLikeGenerator {
	return &HashedGitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *HashedGitLikeGenerator) GenerateKey(ownerID, imageID uuid.UUID, metadata *KeyMetadata) string {
	hash := sha256.Sum256([]byte(ownerID.String() + imageID.String()))
	return shardedKey(fmt.Sprintf("%x", hash)[:16], g.ShardLength, metadata)
}

func shardedKey(id string, shardLength int, metadata *KeyMetadata) string {
	if shardLength <= 0 || shardLength >= len(id) {
		shardLength = 2
	}
	shardDir := id[:shardLength]
	filename := id[shardLength:] + extension(metadata)

	purpose := PurposePost
	if metadata != nil && metadata.Purpose != "" {
		purpose = sanitizePathComponent(metadata.Purpose)
	}

	if metadata != nil && metadata.Variant != "" {
		return fmt.Sprintf("%ss/%s/objects/%s/%s", purpose, sanitizePathComponent(metadata.Variant), shardDir, filename)
	}
	return fmt.Sprintf("%ss/objects/%s/%s", purpose, shardDir, filename)
}

func extension(metadata *KeyMetadata) string {
	if metadata == nil {
		return ""
	}
	switch metadata.MimeType {
	case "image/gif":
		return ".gif"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		".", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}

// NewRecommendedGenerator returns the recommended generator for new installations
func NewRecommendedGenerator() Generator {
	return NewGitLikeGenerator()
}
