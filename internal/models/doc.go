// Package models defines domain entities and persistence interfaces for the reelx client.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs decoded from remote services
//   - [Movie] : Movie metadata from The Movie Database
//   - [Page] : One page of results from any paginated lookup
//   - [User] : The account returned by the backend's "who am I" endpoint
//   - [Student] / [StudentInput] : Student records managed on the backend
//   - [Prediction] / [StockPrediction] : Stock price prediction results
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [PredictionRecord] : Locally recorded prediction results
//
// Persistent entities implement the Model interface providing ID generation, timestamps, and validation.
// The Repository[T] interface defines the operations for database access.
package models
