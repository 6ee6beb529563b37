package downloader

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Layout controls where extracted artifact files are placed.
type Layout struct {
	Flatten   bool
	OutputDir string
}

var client = &http.Client{
	Timeout: 5 * time.Minute,
}

// DownloadAndExtract downloads one artifact archive and materializes its
// files according to the layout. Returns the number of files written.
//
// In flatten mode every member file lands directly in OutputDir under its
// base name; collisions are overwritten, last write wins. Otherwise the
// archive is extracted under OutputDir/<artifact name> preserving member
// paths, and a non-empty existing subdirectory is left alone.
func DownloadAndExtract(ctx context.Context, downloadURL, artifactName string, layout Layout) (int, error) {
	outputDir := layout.OutputDir
	if !layout.Flatten {
		outputDir = filepath.Join(layout.OutputDir, artifactName)
		if hasFiles(outputDir) {
			fmt.Printf("Artifact '%s' already exists at %s; skipping\n", artifactName, outputDir)
			return 0, nil
		}
	}

	err := os.MkdirAll(outputDir, 0o755)
	if err != nil {
		return 0, fmt.Errorf("error creating output directory: %v", err)
	}

	tempZip, err := os.CreateTemp("", "artifact-*.zip")
	if err != nil {
		return 0, fmt.Errorf("error creating temp file: %v", err)
	}
	tempZip.Close()
	defer os.Remove(tempZip.Name())

	size, err := downloadFile(ctx, downloadURL, tempZip.Name())
	if err != nil {
		return 0, fmt.Errorf("error downloading archive: %w", err)
	}
	fmt.Printf("Downloaded %.2f MB\n", float64(size)/(1024*1024))

	if size == 0 {
		fmt.Fprintln(os.Stderr, "warning: downloaded archive is empty")
		return 0, nil
	}

	count, err := extract(tempZip.Name(), outputDir, layout.Flatten)
	if err != nil {
		return 0, fmt.Errorf("error extracting archive: %w", err)
	}

	return count, nil
}

func downloadFile(ctx context.Context, url, filePath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(filePath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, resp.Body)
}

func extract(zipFile, outputDir string, flatten bool) (int, error) {
	r, err := zip.OpenReader(zipFile)
	if err != nil {
		return 0, fmt.Errorf("error opening zip file: %v", err)
	}
	defer r.Close()

	count := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		var dest string
		if flatten {
			name := path.Base(f.Name)
			// Some runners wrap artifact contents in an inner artifact.zip.
			if name == "artifact.zip" {
				fmt.Printf("Skipping artifact wrapper: %s\n", f.Name)
				continue
			}
			dest = filepath.Join(outputDir, name)
		} else {
			if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
				return count, fmt.Errorf("error extracting file: illegal path %q", f.Name)
			}
			dest = filepath.Join(outputDir, filepath.FromSlash(f.Name))
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return count, fmt.Errorf("error creating directory: %v", err)
			}
		}

		err := writeFile(f, dest)
		if err != nil {
			return count, fmt.Errorf("error extracting file: %v", err)
		}
		count++
	}

	return count, nil
}

func writeFile(file *zip.File, dest string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("error opening file in zip: %v", err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("error creating extracted file: %v", err)
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	if err != nil {
		return fmt.Errorf("error writing to extracted file: %v", err)
	}

	fmt.Printf("Extracted: %s\n", file.Name)

	return nil
}

func hasFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
