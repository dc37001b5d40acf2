// Package process provides a runtime adapter that launches the backend as a
// local child process.
//
// Full process-tree termination is only guaranteed on Linux, where the adapter
// places the child in its own process group and delivers SIGKILL to the whole
// group. On Windows only the direct child is terminated; grandchildren may
// remain running and must be cleaned up by the backend itself.
package process
