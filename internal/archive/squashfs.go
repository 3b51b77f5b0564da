package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/railwayapp/funcpush/internal/deployerr"
)

// mksquashfs is the tool used to build compressed filesystem images.
var mksquashfs = "mksquashfs"

// ToSquashfs converts a zip package into a squashfs image by extracting it
// to a scratch directory and running mksquashfs over it.
func ToSquashfs(ctx context.Context, pkg *Package) (*Package, error) {
	if pkg.Format != FormatZip {
		return nil, fmt.Errorf("cannot convert %s package to squashfs", pkg.Format)
	}
	bin, err := exec.LookPath(mksquashfs)
	if err != nil {
		return nil, deployerr.Validation("%s is required to build a squashfs package; install squashfs-tools or publish with --build remote", mksquashfs)
	}

	tempDir, err := os.MkdirTemp("", "funcpush-squashfs-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	src := filepath.Join(tempDir, "root")
	if err := extract(pkg, src); err != nil {
		return nil, err
	}

	out := filepath.Join(tempDir, "package.squashfs")
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, src, out, "-noappend", "-quiet")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("mksquashfs failed: %w: %s", err, stderr.String())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read squashfs image: %w", err)
	}
	return NewPackage(data, FormatSquashfs, pkg.Files), nil
}

func extract(pkg *Package, dest string) error {
	zr, err := zip.NewReader(pkg, pkg.Size())
	if err != nil {
		return fmt.Errorf("failed to open zip package: %w", err)
	}
	for _, f := range zr.File {
		if !filepath.IsLocal(f.Name) {
			return fmt.Errorf("refusing to extract %s outside the package root", f.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
