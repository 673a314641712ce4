// Package bytecode lowers analyzed Loom modules into stack machine
// bytecode and reads it back.
//
// # Architecture Overview
//
//   - Opcodes: a fixed catalog where every opcode declares the byte width of
//     each operand (1 to 4 bytes, signed). An operand that does not fit its
//     width is a compiler bug and panics with *InvariantError.
//
//   - Stream: an append-only instruction list. Branches are emitted with a
//     zero operand plus an offset request; Resolve lays the stream out and
//     rewrites each request as destination minus source position. Patch
//     callbacks handle values known only after layout, such as the entry
//     address of a function called directly.
//
//   - ConstantPool: literals, function, type and module references,
//     de-duplicated on insertion. Entries released by the call optimisation
//     are dropped by Compact before layout.
//
//   - Compile: walks an *ast.Module and fills two streams, init for module
//     initialisation and code for function bodies, into a CompiledModule.
//
//   - CompiledModule: the serialisable result, encoded as canonical CBOR so
//     identical inputs produce identical bytes.
//
// # Control Blocks
//
// if chains, while and do-while loops and the short circuit operators are
// lowered to conditional jumps. seq, paral, paral_all and defer blocks get a
// Block header carrying the block kind and its byte size; a seq header is
// elided when the block has no parallel ancestor or descendant and no
// defer child.
package bytecode
