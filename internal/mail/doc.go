// Package mail рендерит discharge письма владельцам.
//
// Шаблоны хранятся в YAML каталоге (встроенный каталог — templates/default.yaml,
// свой можно загрузить через LoadCatalog). Subject и text рендерятся text/template,
// html — html/template, после чего HTML дополнительно очищается bluemonday.
//
// Функции шаблонов: default, coalesce, join, title, lower, upper, trim, replace,
// contains, json.
package mail
