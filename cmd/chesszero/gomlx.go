package main

// Include the pure-Go GoMLX backend.

import (
	_ "github.com/gomlx/gomlx/backends/simplego"
)
