package backup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/models"
)

// Encode writes env as JSON, gzip-compressed when compress is set.
func Encode(w io.Writer, env *models.BackupEnvelope, compress bool) error {
	if !compress {
		return json.NewEncoder(w).Encode(env)
	}
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(env); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Decode reads an envelope written by Encode. Gzip input is detected from
// its magic bytes.
func Decode(r io.Reader) (*models.BackupEnvelope, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, apperr.Invalid("backup", "corrupt gzip stream")
		}
		defer zr.Close()
		return decodeJSON(zr)
	}
	return decodeJSON(br)
}

func decodeJSON(r io.Reader) (*models.BackupEnvelope, error) {
	var env models.BackupEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, apperr.Invalid("backup", fmt.Sprintf("malformed envelope: %v", err))
	}
	if env.Files == nil {
		env.Files = []models.BackupFile{}
	}
	return &env, nil
}
