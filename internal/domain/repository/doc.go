// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente (PostgreSQL, Redis, FileSystem, memoria).
//
// Las implementaciones concretas viven en internal/store/{pg,redis,fs,memory}.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│   tenantconfig / limiter / challenge / credential   │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│  FeatureConfig, Attempt, Challenge, Credential      │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	         ┌──────────────┼──────────────┬─────────────┐
//	         ▼              ▼              ▼             ▼
//	┌─────────────┐  ┌─────────────┐  ┌─────────┐  ┌──────────┐
//	│     pg      │  │    redis    │  │   fs    │  │  memory  │
//	└─────────────┘  └─────────────┘  └─────────┘  └──────────┘
//
// Convenciones:
//   - TenantID se pasa explícitamente en todos los métodos
//   - Context siempre es el primer parámetro
//   - "now" lo decide el caller (reloj inyectable); los stores no leen el reloj
//   - Toda mutación es atómica en el store (Lua, transacción o UPDATE condicional)
//   - Errores de dominio están en errors.go
package repository
