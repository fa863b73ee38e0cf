package models

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"educa/pkg/domain"
)

// DocumentKind names one of the enrollment document slots.
type DocumentKind string

const (
	DocSUSCard          DocumentKind = "cartao_sus"
	DocDisabilityReport DocumentKind = "laudo_pcd"
	DocResidenceProof   DocumentKind = "comprovante_residencia"
	DocSchoolHistory    DocumentKind = "historico_escolar"
)

// DocumentKinds lists every slot in form order.
var DocumentKinds = []DocumentKind{DocSUSCard, DocDisabilityReport, DocResidenceProof, DocSchoolHistory}

// Required reports whether the slot must be filled.
func (k DocumentKind) Required() bool {
	return k == DocResidenceProof || k == DocSchoolHistory
}

// FileRef points at a stored blob.
type FileRef struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
}

// Documents is the document set attached to one enrollment.
type Documents struct {
	ID               int64     `json:"id"`
	EnrollmentID     int64     `json:"enrollment"`
	SUSCard          *FileRef  `json:"cartao_sus"`
	DisabilityReport *FileRef  `json:"laudo_pcd"`
	ResidenceProof   *FileRef  `json:"comprovante_residencia"`
	SchoolHistory    *FileRef  `json:"historico_escolar"`
	CreatedAt        time.Time `json:"created_at"`
}

// Slot returns a pointer to the field holding kind.
func (d *Documents) Slot(kind DocumentKind) **FileRef {
	switch kind {
	case DocSUSCard:
		return &d.SUSCard
	case DocDisabilityReport:
		return &d.DisabilityReport
	case DocResidenceProof:
		return &d.ResidenceProof
	case DocSchoolHistory:
		return &d.SchoolHistory
	}
	return nil
}

// Keys returns the blob keys of every stored file.
func (d *Documents) Keys() []string {
	var keys []string
	for _, kind := range DocumentKinds {
		if ref := *d.Slot(kind); ref != nil {
			keys = append(keys, ref.Key)
		}
	}
	return keys
}

// UploadFile is one uploaded file, independent of the transport.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// DocumentUpload is a multipart document submission.
type DocumentUpload struct {
	Enrollment string
	Files      map[DocumentKind]UploadFile
}

// Validate checks the enrollment reference and the mandatory files.
func (u *DocumentUpload) Validate() (int64, error) {
	v := newValidator()
	var id int64
	if strings.TrimSpace(u.Enrollment) == "" {
		v.add("enrollment", msgRequired)
	} else if parsed, err := domain.ParseID(u.Enrollment); err != nil {
		v.add("enrollment", "A valid integer is required.")
	} else {
		id = parsed
	}
	for _, kind := range DocumentKinds {
		f, ok := u.Files[kind]
		switch {
		case !ok && kind.Required():
			v.add(string(kind), "No file was submitted.")
		case ok && f.Size == 0:
			v.add(string(kind), "The submitted file is empty.")
		}
	}
	return id, v.err("invalid document upload")
}

// SafeFilename strips any directory part and unsafe characters.
func SafeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
