// Package builtin provides reference tools that can be registered with a
// tool.Registry out of the box:
//
//   - current_time: formatted wall clock time in an IANA location
//   - calculator:   binary arithmetic on two numbers
//   - fetch_url:    page title and readable text of an HTML document
//   - crawl_links:  absolute links found on a page
//
// They are intentionally small; real deployments register their own tools.
package builtin
