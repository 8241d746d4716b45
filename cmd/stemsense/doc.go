// Command stemsense is the CLI companion to stemsensed. It submits jobs,
// inspects task state, requests cancellations, and resolves signed download
// URLs over the daemon's HTTP API.
package main
