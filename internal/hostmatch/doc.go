// Package hostmatch resolves which remote an ssh invocation targets and ranks
// configured host patterns against it.
//
// ParseCommandLine understands command lines such as
//
//	ssh git@github.com git-upload-pack 'owner/repo.git'
//	"C:\Program Files\OpenSSH\ssh.exe" -o SendEnv=GIT_PROTOCOL git@github.com git-receive-pack 'owner/repo.git'
//
// ParseArgv takes the same arguments as a vector, the shape procfs reports,
// where git passes the remote command as a single element.
//
// Patterns take one of four shapes, listed with their specificity:
//
//	github.com                 1
//	github.com:*               1
//	github.com:owner/*         2
//	github.com:owner/repo.git  3
//
// BestMatch picks the highest specificity regardless of configuration order.
package hostmatch
