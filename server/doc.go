// Package server exposes a spartanfiles Repository over HTTP with JSON responses.
//
// Routes live under a configurable prefix (default /spartanfiles):
//
//	GET    {p}/login                         login prompt
//	POST   {p}/login                         form or JSON credentials, sets the session cookie
//	GET    {p}/logout, POST {p}/logout       ends the session and clears the cookie
//	GET    {p}/                              every department with its categories
//	GET    {p}/{department}                  categories of one department
//	GET    {p}/{department}/{category}       files in a category
//	POST   {p}/{department}/{category}       multipart "file" upload and/or "delete_file" form field
//	GET    {p}/{department}/{category}/{f}   download as an attachment
//	DELETE {p}/{department}/{category}/{f}   delete
//	GET    /healthz                          Redis reachability
//	GET    {p}/metrics                       Prometheus text, only with Config.ExposeMetrics
//
// Every request gets an X-Request-ID, an access log line and panic recovery. State-changing
// requests carrying a foreign Origin header are refused.
//
// # Architecture boundaries
//
// Handlers decode HTTP input, call the Repository and map its sentinel errors to status codes.
// Session checks are delegated to the middleware package.
//
// # What this package must NOT do
//
//   - Touch the storage root or Redis directly.
//   - Reveal which login field was wrong.
//   - Put internal error text in a response body.
package server
