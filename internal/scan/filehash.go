package scan

import (
	"context"
	"fmt"
	"strings"

	"kestrel/internal/domain"
	"kestrel/internal/scan/score"
)

const sha256HexLength = 64

func (e *Engine) scanFileHash(ctx context.Context, target domain.CheckTarget) domain.ScanResult {
	hash, err := normalizeHash(target.Value)
	if err != nil {
		return e.failure(target, "INVALID_HASH", err.Error())
	}

	// A bare hash carries no content type, so every covering source is
	// consulted.
	fileType := domain.FileTypeAny

	bundle := domain.FileHashAnalysisBundle{
		Hash:     hash,
		FileType: fileType,
	}

	protect("local-hash", func() {
		bundle.LocalMatch = e.analyzers.LocalHash.Analyze(hash)
	})
	protect("hash-intel", func() {
		// Fans out to its sources internally.
		bundle.Reputation = e.analyzers.HashIntel.Analyze(ctx, hash, fileType)
	})

	scoreValue, reasons := score.FileHash(bundle)

	return domain.ScanResult{
		Target:  target,
		Score:   scoreValue,
		Status:  domain.ClassifyScore(scoreValue),
		Reasons: reasons,
		Metadata: map[string]string{
			"hash":      hash,
			"file_type": string(fileType),
		},
		ScannedAt: e.now(),
	}
}

func normalizeHash(value string) (string, error) {
	hash := strings.ToLower(strings.TrimSpace(value))
	if len(hash) != sha256HexLength {
		return "", fmt.Errorf("expected a %d-character SHA-256 hex digest, got %d characters", sha256HexLength, len(hash))
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("hash contains a non-hex character %q", r)
		}
	}
	return hash, nil
}
