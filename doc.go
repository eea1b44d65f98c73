// Package assetfs serves application assets from a stack of mounted
// directories and ZIP containers through one slash-separated namespace.
//
// An [FS] is an ordered mount table. Every lookup probes the mounted
// archives front to back and the first archive that has the path wins, so
// the same code reads loose files during development and a single bundled
// container in production.
//
// # Quick Start
//
// Mount a development directory and a release container:
//
//	fsys := assetfs.New()
//	if err := fsys.Mount("./assets"); err != nil {
//	    return err
//	}
//	if err := fsys.Mount("./game.zip", assetfs.MountAt("data")); err != nil {
//	    return err
//	}
//	defer fsys.Close()
//
//	content, err := fsys.ReadFile("data/levels/01.json")
//
// # Priority
//
// Mounts append to the end of the table by default. [MountPrepend] inserts
// at the front, shadowing paths served by earlier mounts:
//
//	fsys.Mount("./patch.zip", assetfs.MountPrepend())
//
// # Standard library
//
// [FS.IOFS] returns an [io/fs.FS] view for use with html/template,
// http.FileServer and friends.
//
// # Concurrency
//
// Mount, Unmount and Close must not run concurrently with any other method.
// Once the table is stable, Stat, Read and List are safe for concurrent use.
package assetfs
