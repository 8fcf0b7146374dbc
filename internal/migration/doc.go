/*
包 migration 管理检查点数据库的 Schema 迁移，基于 golang-migrate
实现，支持 PostgreSQL 与 SQLite 两种数据库。

# 概述

迁移 SQL 文件通过 embed.FS 按方言内嵌，随二进制一起发布，无需额外
部署文件。支持正向迁移、回滚、按步执行、跳转到指定版本以及强制
设置版本号。SQLite 路径使用纯 Go 驱动，与检查点存储共用同一实现，
无需 cgo。

# 核心类型

  - Migrator：迁移器接口，定义 Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close 完整操作集。
  - DefaultMigrator：Migrator 的默认实现，封装 golang-migrate 实例
    与数据库连接管理。
  - Config：迁移配置，包含数据库类型、连接 URL 与迁移表名。
  - CLI：面向终端的格式化输出层，migrate 子命令基于此实现。

# 工厂函数

NewMigratorFromConfig / NewMigratorFromDatabaseConfig 从应用配置的
checkpoint.database 段创建迁移器，NewMigratorFromURL 直接从连接 URL
创建。ParseDatabaseType 与 BuildDatabaseURL 负责类型解析与按方言
拼接连接串。
*/
package migration
