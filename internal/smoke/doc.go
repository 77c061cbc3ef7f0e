// Package smoke holds end-to-end checks against a running chamicore-cosmos
// instance backed by a real account or the Cosmos DB emulator. The tests are
// compiled only with the smoke build tag:
//
//	CHAMICORE_TEST_COSMOS_URL=http://127.0.0.1:27780 go test -tags smoke ./internal/smoke/...
package smoke
