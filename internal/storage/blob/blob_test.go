package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BlobStoreSuite struct {
	suite.Suite
	newStore func() Store
}

func TestFileSystemStore(t *testing.T) {
	suite.Run(t, &BlobStoreSuite{newStore: func() Store {
		fs, err := NewFileSystem(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		return fs
	}})
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &BlobStoreSuite{newStore: func() Store { return NewMemory() }})
}

func (s *BlobStoreSuite) TestPutOpenDelete() {
	ctx := context.Background()
	store := s.newStore()
	content := "comprovante de residência"

	obj, err := store.Put(ctx, "documents/1/abc-comprovante.pdf", strings.NewReader(content))
	s.Require().NoError(err)

	want := sha256.Sum256([]byte(content))
	s.Equal(hex.EncodeToString(want[:]), obj.Checksum)
	s.Equal(int64(len(content)), obj.Size)
	s.Equal("documents/1/abc-comprovante.pdf", obj.Key)

	rc, err := store.Open(ctx, obj.Key)
	s.Require().NoError(err)
	data, err := io.ReadAll(rc)
	s.Require().NoError(rc.Close())
	s.Require().NoError(err)
	s.Equal(content, string(data))

	s.Require().NoError(store.Delete(ctx, obj.Key))
	_, err = store.Open(ctx, obj.Key)
	s.ErrorIs(err, ErrNotFound)

	s.NoError(store.Delete(ctx, obj.Key), "deleting a missing blob is a no-op")
}

func (s *BlobStoreSuite) TestRejectsEscapingKeys() {
	store := s.newStore()
	for _, key := range []string{"../etc/passwd", "/abs/path", ".", "a/../../b"} {
		_, err := store.Put(context.Background(), key, strings.NewReader("x"))
		s.Error(err, key)
	}
}
