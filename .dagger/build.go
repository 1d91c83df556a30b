package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/askstream/internal/dagger"
)

// Build returns a directory holding the askstream binary for the host
// architecture of the build container.
func (a *Askstream) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	build := a.goContainer().
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", "/out/", "./cli/askstream"})

	return build.Directory("/out")
}

// BuildRelease compiles a binary with embedded version info
func (a *Askstream) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/askstream/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/askstream/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/askstream/pkg/utils.Buildtime=%s'", time.Now().UTC().Format(time.RFC3339)),
	}

	return a.Build(ctx, strings.Join(ldflags, " "))
}
