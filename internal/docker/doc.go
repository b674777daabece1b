// Package docker implements the docker runtime of vercel-deploy: the
// deploy tool and its installer run inside a Node container instead of
// on the host.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Labels that tie a container to the run and project that created it
//   - A Session that keeps one container alive for the whole run, so a
//     global `npm install -g vercel` survives until the deploy
//   - Listing and removing leftover session containers
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
