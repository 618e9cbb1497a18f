package syscallprog

import "github.com/yairfalse/kcall/pkg/programs"

// LinkID identifies a Link. All ids are equal since a syscall program has
// at most one meaningful attachment: being loaded.
type LinkID struct{}

// Link is the attachment of a syscall program.
//
// Loading already makes the program invokable, so attaching and detaching do
// not touch the kernel. The program descriptor is released by Program.Close.
type Link struct{}

var _ programs.Link[LinkID] = Link{}

// ID returns the link id.
func (Link) ID() LinkID {
	return LinkID{}
}

// Detach always succeeds.
func (Link) Detach() error {
	return nil
}
