// Package upperq implements the upper-layer queue flow-control collaborator:
// a minimal halt/resume gate the TX engine calls when it runs out of ring
// space and again once a message drains, so whatever feeds Submit can back
// off instead of spinning against ErrNoSpace.
package upperq
