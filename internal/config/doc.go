// Package config загружает конфигурацию Vetflow через viper.
//
// Порядок приоритета (от низшего к высшему):
//   - значения по умолчанию (Default)
//   - YAML файл из VETFLOW_CONFIG
//   - переменные окружения VETFLOW_<SECTION>_<KEY>, например VETFLOW_DATABASE_DSN
package config
