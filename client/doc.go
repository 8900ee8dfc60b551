// Package client provides a client library for warden servers.
//
// A Client keeps one TCP connection open and sends one request at a time.
// Cookies set by the server (session_id after login, key after a privilege
// upgrade) are kept in a jar and sent back on later requests. The jar can be
// saved to a profile so that a login in one process is reused by the next.
//
// # Basic Usage
//
//	c, err := client.New(&client.Config{Address: "localhost:8080"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	if _, err := c.Login(ctx, "alice", "s3cret!Pass"); err != nil {
//		log.Fatal(err)
//	}
//	res, err := c.CheckSession(ctx)
//
// # Profile Configuration
//
// Profiles live in ~/.warden/config.yaml by default:
//
//	configFile, err := client.LoadConfigFile(client.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("local")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	c, err := client.New(client.ConfigFromProfile(profile))
//
// After a command, store c.Cookies() back into the profile and Save the file.
package client
