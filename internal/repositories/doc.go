// Package repositories implements SQLite persistence for the reelx local store.
//
// Key Implementations:
//   - [CookieRepository] : Per-host cookie storage backing the persistent cookie jar, so a login
//     survives between CLI invocations
//   - [PredictionRepository] : History of fetched stock predictions, implementing models.Repository
//
// Tables are created by the embedded migrations in the shared package.
package repositories
