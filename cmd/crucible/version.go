package main

// version is stamped at release time; left as a placeholder for local
// builds.
const version = "1.0.0+dev"
