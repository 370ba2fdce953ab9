// Package docstore is an in-memory document database for factory instances.
//
// Responsibilities:
//   - Store keeps msgpack encoded documents per collection, keyed by id.
//   - Adapter is a factory.Adapter that builds instances like the object
//     adapter, assigns a uuid to documents saved without one and writes them
//     into the collection named after the model.
//
// Data flow:
//
//	Registry.Create -> Adapter.Build -> Adapter.Save -> Store.Put
//	Registry.CleanUp -> Adapter.Destroy -> Store.Delete
//
// Documents are copied on the way in and out, so mutating an instance after
// Save does not change the stored document.
package docstore
