// Package buildlog turns the output of build tools into issues.
//
// The grammars for compiler diagnostics and linker undefined-symbol blocks
// are pure functions ([ParseDiagnostic], [ParseLinkerLine]). A [Parser]
// combines them into a line-at-a-time state machine that feeds an issue
// sink. [Multiplex] reads the standard output and standard error of a child
// process concurrently and hands their lines to a single callback so a tool
// writing heavily to both pipes never blocks. [ExecRunner] spawns processes
// and wires the two together.
package buildlog
