// Package credentials reads the short-lived authentication and anti-forgery identifiers that the
// backend sets as cookies.
//
// An [Accessor] is consulted on every outbound request and never caches. [JarAccessor] reads from an
// [http.CookieJar]; [PersistentJar] is a cookie jar that survives between invocations by writing the
// cookies the server sets to a [CookieStore].
package credentials
