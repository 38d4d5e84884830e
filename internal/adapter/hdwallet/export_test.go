package hdwallet

//nolint:gochecknoinits // keeps scrypt fast under test
func init() {
	workFactor = 10
}
