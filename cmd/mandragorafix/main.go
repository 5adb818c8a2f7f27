// Command mandragorafix is built as a DLL (go build -buildmode=c-shared) and
// loaded into the game by an ASI loader. All work starts from the package
// init of the Windows build; main is never called.
package main

func main() {}
