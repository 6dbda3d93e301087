// Package images resolves product artwork through a fallback chain:
//
//  1. a named asset folder in the drive store (id or fuzzy name under a
//     configured root), first image found
//  2. the platform product's existing first image URL
//  3. brand-prompt image generation
//  4. nil — no image this run; the attach action retries next reconciliation
//
// Every stage swallows its own errors and falls through. Image resolution
// is never allowed to fail a reconciliation run.
package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magneticstudio/catalogd/internal/domain"
)

// ProductFetcher is the slice of the commerce client the resolver needs.
type ProductFetcher interface {
	GetProduct(ctx context.Context, id string) (domain.ActualProduct, error)
}

// Config controls which fallback stages are available.
// Unset credentials disable a stage; the chain simply skips it.
type Config struct {
	DriveBaseURL      string
	DriveAPIKey       string
	RootFolder        string // folder id scoping fuzzy name searches
	GenerationBaseURL string
	GenerationAPIKey  string
	StylePrompt       string
}

// Resolver finds or generates product images.
type Resolver struct {
	http     *http.Client
	cfg      Config
	products ProductFetcher
}

// New creates an image resolver. products may be nil, which disables the
// existing-platform-image stage.
func New(cfg Config, products ProductFetcher) *Resolver {
	return &Resolver{
		http:     &http.Client{Timeout: 60 * time.Second},
		cfg:      cfg,
		products: products,
	}
}

// Resolve walks the fallback chain and returns image bytes, or nil when no
// stage produced anything. The returned error is always nil by design; the
// signature matches domain.ImageSource.
func (r *Resolver) Resolve(ctx context.Context, name, imageFolder, platformProductID string) ([]byte, error) {
	if imageFolder != "" && r.cfg.DriveAPIKey != "" {
		if img, err := r.fromFolder(ctx, imageFolder); err == nil && img != nil {
			return img, nil
		} else if err != nil {
			log.Printf("[images] folder lookup for %q failed: %v", imageFolder, err)
		}
	}

	if platformProductID != "" && r.products != nil {
		if img, err := r.fromExistingProduct(ctx, platformProductID); err == nil && img != nil {
			return img, nil
		} else if err != nil {
			log.Printf("[images] platform image for %s failed: %v", platformProductID, err)
		}
	}

	if r.cfg.GenerationAPIKey != "" {
		if img, err := r.generate(ctx, name); err == nil && img != nil {
			return img, nil
		} else if err != nil {
			log.Printf("[images] generation for %q failed: %v", name, err)
		}
	}

	return nil, nil
}

// ─── Stage 1: Drive Folder ──────────────────────────────────────────────────

type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

type driveList struct {
	Files []driveFile `json:"files"`
}

func (r *Resolver) fromFolder(ctx context.Context, folder string) ([]byte, error) {
	folderID := folder
	if !looksLikeFolderID(folder) {
		id, err := r.findFolder(ctx, folder)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, nil
		}
		folderID = id
	}

	q := fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed = false", folderID)
	files, err := r.driveQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return r.driveDownload(ctx, files[0].ID)
}

// findFolder fuzzy-searches a folder by name, scoped under the configured
// root folder when one is set.
func (r *Resolver) findFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name contains '%s' and mimeType = 'application/vnd.google-apps.folder' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`))
	if r.cfg.RootFolder != "" {
		q += fmt.Sprintf(" and '%s' in parents", r.cfg.RootFolder)
	}
	files, err := r.driveQuery(ctx, q)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[0].ID, nil
}

func (r *Resolver) driveQuery(ctx context.Context, q string) ([]driveFile, error) {
	v := url.Values{}
	v.Set("q", q)
	v.Set("fields", "files(id,name,mimeType)")
	v.Set("pageSize", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.cfg.DriveBaseURL+"/drive/v3/files?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.DriveAPIKey)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drive query: status %d", resp.StatusCode)
	}

	var list driveList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	return list.Files, nil
}

func (r *Resolver) driveDownload(ctx context.Context, fileID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.cfg.DriveBaseURL+"/drive/v3/files/"+fileID+"?alt=media", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.DriveAPIKey)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drive download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}

// looksLikeFolderID distinguishes raw drive ids from human folder names.
// Drive ids are long, spaceless, and mix case with digits/dashes.
func looksLikeFolderID(s string) bool {
	if len(s) < 20 || strings.ContainsAny(s, " \t") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// ─── Stage 2: Existing Platform Image ───────────────────────────────────────

func (r *Resolver) fromExistingProduct(ctx context.Context, productID string) ([]byte, error) {
	p, err := r.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(p.Images) == 0 {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Images[0], nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image url: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}

// ─── Stage 3: Generation ────────────────────────────────────────────────────

func (r *Resolver) generate(ctx context.Context, name string) ([]byte, error) {
	prompt := strings.TrimSpace(r.cfg.StylePrompt + " " + name)
	body, err := json.Marshal(map[string]any{
		"prompt":          prompt,
		"n":               1,
		"size":            "1024x1024",
		"response_format": "b64_json",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.cfg.GenerationBaseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.GenerationAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation: status %d", resp.StatusCode)
	}

	var out struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
}
