package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rbright/vetchat/internal/backend"
	"github.com/rbright/vetchat/internal/config"
	"github.com/rbright/vetchat/internal/indicator"
	"github.com/rbright/vetchat/internal/transcript"
)

const (
	// DefaultMaxUploadBytes is the largest file accepted for analysis.
	DefaultMaxUploadBytes = 16 << 20

	analyzingMessage    = "🔍 Analyzing your file, please wait..."
	analysisTitle       = "Image Analysis Results"
	analysisFailed      = "File analysis failed"
	analysisUnavailable = "File analysis service unavailable"
	uploadErrorMessage  = "I encountered an error analyzing your file. Please try again."
)

var (
	// ErrFileTooLarge is returned before any network call for oversized files.
	ErrFileTooLarge = errors.New("File too large. Maximum size is 16MB.")
	// ErrUnsupportedType is returned before any network call for disallowed types.
	ErrUnsupportedType = errors.New("Unsupported file type. Please upload images or PDF files.")
)

// DefaultAllowedTypes lists the content types accepted for analysis.
var DefaultAllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "application/pdf"}

// UploadPolicy bounds what UploadFile accepts.
type UploadPolicy struct {
	MaxBytes     int64
	AllowedTypes []string
	Question     string
}

func (p UploadPolicy) withDefaults() UploadPolicy {
	if p.MaxBytes <= 0 {
		p.MaxBytes = DefaultMaxUploadBytes
	}
	if len(p.AllowedTypes) == 0 {
		p.AllowedTypes = DefaultAllowedTypes
	}
	if strings.TrimSpace(p.Question) == "" {
		p.Question = config.AnalysisQuestion
	}
	return p
}

// File is one local file offered for analysis.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// OpenFile opens path and sniffs its content type. The caller closes the
// returned closer.
func OpenFile(path string) (File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("open upload: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return File{}, nil, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return File{}, nil, fmt.Errorf("upload %q is a directory", path)
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		contentType = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			_ = f.Close()
			return File{}, nil, fmt.Errorf("rewind upload: %w", err)
		}
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}

	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType,
		Body:        f,
	}, f, nil
}

// Validate applies the local size and type checks.
func (p UploadPolicy) Validate(file File) error {
	p = p.withDefaults()
	if file.Size > p.MaxBytes {
		return ErrFileTooLarge
	}
	contentType := strings.ToLower(strings.TrimSpace(file.ContentType))
	for _, allowed := range p.AllowedTypes {
		if strings.EqualFold(allowed, contentType) {
			return nil
		}
	}
	return ErrUnsupportedType
}

// UploadFile submits a file for analysis and renders the outcome.
func (c *Controller) UploadFile(ctx context.Context, file File, languageCode string) error {
	if err := c.policy.Validate(file); err != nil {
		c.notifier.Notify(ctx, indicator.KindError, err.Error())
		return err
	}
	if languageCode = strings.TrimSpace(languageCode); languageCode == "" {
		languageCode = c.Language()
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.appendMessage(transcript.RoleUser, fmt.Sprintf("📎 Uploaded file: %s (%s)", file.Name, FormatSize(file.Size)))
	placeholder := c.transcript.AppendPlaceholder(transcript.RoleAssistant, analyzingMessage)
	c.view.AppendMessage(placeholder)

	reply, err := c.backend.Upload(ctx, backend.Upload{
		Name:        file.Name,
		ContentType: file.ContentType,
		Body:        file.Body,
		Language:    languageCode,
		Question:    c.policy.Question,
	})

	c.transcript.Remove(placeholder.ID)
	c.view.RemoveMessage(placeholder.ID)

	if err != nil {
		c.appendMessage(transcript.RoleAssistant, "❌ "+uploadErrorMessage)
		c.notifier.Notify(ctx, indicator.KindError, "File upload failed: "+causeText(err))
		c.logWarn("upload failed", err)
		return err
	}
	if reply.Success {
		c.appendMessage(transcript.RoleAssistant, reply.Response)
		c.speak(ctx, reply.Response)
		if reply.Type == backend.ReplyTypeImageAnalysis {
			c.view.ShowDetail(analysisTitle, reply.Response)
		}
		return nil
	}

	c.handleReplyFailure(ctx, reply, analysisFailed, analysisUnavailable)
	return &backend.ServiceError{Message: firstNonEmpty(reply.Error, analysisUnavailable)}
}

// FormatSize renders bytes the way file pickers do: "0 Bytes", "512 Bytes",
// "1.5 KB", "2.25 MB".
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + units[i]
}
