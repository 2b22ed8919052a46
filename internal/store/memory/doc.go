// Package memory implementa los repositorios en proceso, protegidos por mutex.
// Sirve para desarrollo, tests y despliegues de una sola instancia.
package memory
