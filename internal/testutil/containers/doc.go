// Package containers manages the Docker containers SiteWatch integration
// tests run against: MySQL for the repository layer, an Eclipse Mosquitto
// broker for running-hours ingestion, and an ntfy server for alert delivery.
//
// Containers are started once per test binary from TestMain:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(ctx, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(ctx)
//	    os.Exit(code)
//	}
//
// Everything in this package sits behind the "integration" build tag, as do
// the tests that use it:
//
//	go test -tags=integration ./...
package containers
