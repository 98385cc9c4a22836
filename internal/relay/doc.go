// Package relay runs poll cycles: it refreshes the repository set, collects
// new activity, renders it and delivers the resulting blocks to every
// configured destination, one cycle at a time.
package relay
