// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package documents stores user-uploaded text files and serves them to the
// document Q&A flow. Every lookup canonicalizes the requested name against
// the uploads root; anything that escapes the root reports the document as
// missing rather than forbidden.
package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/observability"
)

// MaxFileSize caps uploads at 10 MiB.
const MaxFileSize = 10 * 1024 * 1024

// allowedExtensions lists the plain-text formats the Q&A flow accepts.
var allowedExtensions = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".js": true, ".json": true,
	".xml": true, ".html": true, ".css": true, ".java": true, ".cpp": true,
	".c": true, ".h": true, ".ts": true, ".jsx": true, ".tsx": true,
	".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true,
	".conf": true, ".log": true, ".csv": true,
}

// ErrInvalidExtension rejects uploads outside the allow-list.
var ErrInvalidExtension = errors.New("invalid file type")

// ErrTooLarge rejects uploads over MaxFileSize.
var ErrTooLarge = errors.New("file exceeds the 10 MiB upload limit")

// Document is one stored upload. Content is populated by Load only.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
	Content   string `json:"content,omitempty"`
}

// Store manages the uploads directory. A listing snapshot is kept until a
// mutation or a watcher event invalidates it.
type Store struct {
	root   string
	tracer observability.Tracer

	listMu    sync.RWMutex
	listing   []Document
	listingOK bool
}

// NewStore creates the uploads root if needed and returns a store over it.
func NewStore(root string, tracer observability.Tracer) (*Store, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uploads root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads root: %w", err)
	}
	return &Store{root: abs, tracer: tracer}, nil
}

// Root returns the canonical uploads directory.
func (s *Store) Root() string {
	return s.root
}

// AllowedExtensions returns the upload allow-list, sorted.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Save validates and writes an upload. The name is reduced to its base
// component; collisions get a numeric suffix before the extension.
func (s *Store) Save(ctx context.Context, name string, content []byte) (*Document, error) {
	_, span := s.tracer.StartSpan(ctx, "documents.save")
	defer s.tracer.EndSpan(span)

	if strings.TrimSpace(name) == "" {
		return nil, apierror.BadRequest(apierror.CodeMissingFilename, "No filename provided")
	}

	safe := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(safe))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w %q; allowed extensions: %s",
			ErrInvalidExtension, ext, strings.Join(AllowedExtensions(), ", "))
	}
	if len(content) > MaxFileSize {
		return nil, ErrTooLarge
	}

	path := filepath.Join(s.root, safe)
	base := strings.TrimSuffix(safe, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		safe = fmt.Sprintf("%s_%d%s", base, counter, ext)
		path = filepath.Join(s.root, safe)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		span.RecordError(err)
		return nil, apierror.Internal(apierror.CodeFileSaveFailed,
			fmt.Sprintf("Failed to save file: %v", err)).WithCause(err)
	}

	s.invalidateListing()
	span.SetAttribute("document_id", safe)

	info, err := os.Stat(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to stat saved file: %w", err)
	}
	doc := describe(safe, info)
	return &doc, nil
}

// List returns every stored document, newest first.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	_, span := s.tracer.StartSpan(ctx, "documents.list")
	defer s.tracer.EndSpan(span)

	s.listMu.RLock()
	if s.listingOK {
		cached := s.listing
		s.listMu.RUnlock()
		return cached, nil
	}
	s.listMu.RUnlock()

	docs, err := s.scan()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.listMu.Lock()
	s.listing = docs
	s.listingOK = true
	s.listMu.Unlock()

	span.SetAttribute("count", len(docs))
	return docs, nil
}

// Load returns a document's metadata and content.
func (s *Store) Load(ctx context.Context, id string) (*Document, error) {
	_, span := s.tracer.StartSpan(ctx, "documents.load")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("document_id", id)

	path, info, err := s.resolve(id)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		return nil, notFound(id)
	}

	doc := describe(filepath.Base(path), info)
	doc.Content = string(content)
	return &doc, nil
}

// Delete removes a stored document.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, span := s.tracer.StartSpan(ctx, "documents.delete")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("document_id", id)

	path, _, err := s.resolve(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		span.RecordError(err)
		return apierror.Internal(apierror.CodeFileDeleteFailed,
			fmt.Sprintf("Failed to delete file: %v", err)).WithCause(err)
	}

	s.invalidateListing()
	return nil
}

// resolve canonicalizes a document id against the uploads root. Escapes and
// missing files both collapse to DOCUMENT_NOT_FOUND.
func (s *Store) resolve(id string) (string, os.FileInfo, error) {
	if id == "" {
		return "", nil, notFound(id)
	}

	path, err := filepath.Abs(filepath.Join(s.root, id))
	if err != nil {
		return "", nil, notFound(id)
	}
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", nil, notFound(id)
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, notFound(id)
	}
	return path, info, nil
}

func (s *Store) scan() ([]Document, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploads root: %w", err)
	}

	docs := []Document{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		docs = append(docs, describe(entry.Name(), info))
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt != docs[j].CreatedAt {
			return docs[i].CreatedAt > docs[j].CreatedAt
		}
		return docs[i].Name < docs[j].Name
	})
	return docs, nil
}

// invalidateListing drops the listing snapshot; the next List rescans.
func (s *Store) invalidateListing() {
	s.listMu.Lock()
	s.listingOK = false
	s.listMu.Unlock()
}

func describe(name string, info os.FileInfo) Document {
	return Document{
		ID:        name,
		Name:      name,
		Size:      info.Size(),
		CreatedAt: info.ModTime().Format("2006-01-02T15:04:05"),
	}
}

func notFound(id string) *apierror.Error {
	return apierror.NotFound(apierror.CodeDocumentNotFound, "document", id, "Document not found")
}
