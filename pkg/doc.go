// Package pkg provides the libraries behind the classpath Maven dependency
// resolver.
//
// # Overview
//
// classpath turns Maven coordinates or a pom.xml into the list of jar files
// a JVM needs: it expands transitive dependencies, settles version conflicts
// (nearest declaration wins), honors scopes, exclusions and optional flags,
// and downloads every artifact into a local repository. The pkg directory is
// organized into three areas:
//
//  1. Model - [maven] coordinates and scopes, [pom] project descriptors
//  2. Resolution - [metadata] version selection, [resolve] graph expansion
//  3. Infrastructure - [repository], [proxy], [transport], [localrepo],
//     [cache], [mirror], [config], [observability]
//
// # Architecture
//
// The typical data flow of one resolution:
//
//	coordinates / pom.xml
//	         ↓
//	    [maven] / [pom] (parse roots, inherit from parents, interpolate)
//	         ↓
//	    [metadata] (ranges, RELEASE, LATEST against maven-metadata.xml)
//	         ↓
//	    [resolve] (breadth-first expansion, conflict resolution, downloads)
//	         ↓
//	    [localrepo] files → classpath, tree, DOT/SVG via [render]
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/classpath/pkg/localrepo"
//	    "github.com/matzehuels/classpath/pkg/maven"
//	    "github.com/matzehuels/classpath/pkg/repository"
//	    "github.com/matzehuels/classpath/pkg/resolve"
//	    "github.com/matzehuels/classpath/pkg/transport"
//	)
//
//	repos, _ := repository.NewRegistry(repository.Options{}, nil, nil).ResolveAll(nil)
//	r, _ := resolve.New(resolve.Options{
//	    Repositories: repos,
//	    Local:        localrepo.New(localrepo.Options{}, nil),
//	    Transport:    transport.New(transport.Options{}, nil),
//	})
//	deps, _ := maven.ParseDependencies([]string{"com.google.guava:guava:33.0.0-jre"}, "jar")
//	files, err := r.ResolveFiles(ctx, deps)
//
// # Caching
//
// Artifacts are cached forever in the local repository. Version listings
// are cached by [cache] backends (file, Redis or in-memory LRU), keyed per
// repository, and re-checked according to each repository's update policy.
//
// # Errors
//
// Every package reports failures through [errors], whose codes let the CLI
// print a user message and tests assert on the failure class.
//
// [maven]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/maven
// [pom]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/pom
// [metadata]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/metadata
// [resolve]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/resolve
// [repository]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/repository
// [proxy]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/proxy
// [transport]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/transport
// [localrepo]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/localrepo
// [cache]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/cache
// [mirror]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/mirror
// [config]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/observability
// [render]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/render
// [errors]: https://pkg.go.dev/github.com/matzehuels/classpath/pkg/errors
package pkg
