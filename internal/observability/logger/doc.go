// Package logger expone un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global, inicializada con Init().
//   - Scoping: cada request lleva su propio logger con request_id, tenant_id, etc.
//     sin crear un core nuevo.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//
// # Uso
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("biometric.verify"))
//	log.Warn("sign count replay", logger.CredentialID(id))
package logger
