package main

import "github.com/railwayapp/funcpush/cmd/funcpush"

func main() {
	funcpush.Execute()
}
